package sheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "sheetflow/internal/errors"
	"sheetflow/ports"
)

type MockCredentials struct {
	mock.Mock
}

func (m *MockCredentials) Token(ctx context.Context) (ports.Credential, error) {
	args := m.Called(ctx)
	return args.Get(0).(ports.Credential), args.Error(1)
}

func (m *MockCredentials) Reconsent(ctx context.Context) (ports.Credential, error) {
	args := m.Called(ctx)
	return args.Get(0).(ports.Credential), args.Error(1)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, creds ports.CredentialSource) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{SheetsBaseURL: server.URL + "/v4", DriveBaseURL: server.URL + "/drive/v3"}, creds)
}

func TestGetValues(t *testing.T) {
	creds := new(MockCredentials)
	creds.On("Token", mock.Anything).Return(ports.Credential{AccessToken: "tok"}, nil)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/v4/spreadsheets/abc/values/'Q1 Orders'", r.URL.Path)
		assert.Equal(t, "FORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		w.Write([]byte(`{"range":"'Q1 Orders'!A1:B3","values":[["Order #","Amount"],["A1","€1.234,56"],["A2"]]}`))
	}, creds)

	values, err := client.GetValues(context.Background(), "abc", "Q1 Orders")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Order #", "Amount"}, {"A1", "€1.234,56"}, {"A2"}}, values)
	creds.AssertNotCalled(t, "Reconsent", mock.Anything)
}

func TestListTabs(t *testing.T) {
	creds := new(MockCredentials)
	creds.On("Token", mock.Anything).Return(ports.Credential{AccessToken: "tok"}, nil)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sheets":[{"properties":{"sheetId":0,"title":"Orders"}},{"properties":{"sheetId":17,"title":"Archive"}}]}`))
	}, creds)

	tabs, err := client.ListTabs(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []ports.Tab{{ID: 0, Name: "Orders"}, {ID: 17, Name: "Archive"}}, tabs)
}

func TestListSpreadsheetsFollowsPages(t *testing.T) {
	creds := new(MockCredentials)
	creds.On("Token", mock.Anything).Return(ports.Credential{AccessToken: "tok"}, nil)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive/v3/files", r.URL.Path)
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"nextPageToken":"p2","files":[{"id":"1","name":"Orders","modifiedTime":"2024-05-01T10:00:00Z","webViewLink":"https://x/1","owners":[{"displayName":"Ana"}]}]}`))
			return
		}
		w.Write([]byte(`{"files":[{"id":"2","name":"Stock","owners":[{"emailAddress":"bo@example.com"}]}]}`))
	}, creds)

	sheets, err := client.ListSpreadsheets(context.Background())
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "Orders", sheets[0].Name)
	assert.Equal(t, []string{"Ana"}, sheets[0].Owners)
	assert.Equal(t, 2024, sheets[0].ModifiedTime.Year())
	assert.Equal(t, []string{"bo@example.com"}, sheets[1].Owners)
}

func TestRetriesOnceAfterReconsent(t *testing.T) {
	creds := new(MockCredentials)
	creds.On("Token", mock.Anything).Return(ports.Credential{AccessToken: "stale"}, nil)
	creds.On("Reconsent", mock.Anything).Return(ports.Credential{AccessToken: "fresh"}, nil).Once()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"values":[["a"]]}`))
	}, creds)

	values, err := client.GetValues(context.Background(), "abc", "Tab")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, values)
	creds.AssertNumberOfCalls(t, "Reconsent", 1)
}

func TestFailsAfterSecondRefusal(t *testing.T) {
	creds := new(MockCredentials)
	creds.On("Token", mock.Anything).Return(ports.Credential{AccessToken: "a"}, nil)
	creds.On("Reconsent", mock.Anything).Return(ports.Credential{AccessToken: "b"}, nil)

	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	}, creds)

	_, err := client.GetValues(context.Background(), "abc", "Tab")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "does not have permission")
	assert.Equal(t, 2, calls)
	creds.AssertNumberOfCalls(t, "Reconsent", 1)
}

func TestServerErrorIsNotRetried(t *testing.T) {
	creds := new(MockCredentials)
	creds.On("Token", mock.Anything).Return(ports.Credential{AccessToken: "a"}, nil)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, creds)

	_, err := client.ListTabs(context.Background(), "abc")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuth))
	creds.AssertNotCalled(t, "Reconsent", mock.Anything)
}
