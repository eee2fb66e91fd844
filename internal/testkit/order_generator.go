package testkit

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// OrderSheetConfig configures the order sheet generator
type OrderSheetConfig struct {
	Orders           int       `json:"orders"`
	MaxLinesPerOrder int       `json:"max_lines_per_order"`
	ProductCount     int       `json:"product_count"`
	BlankRate        float64   `json:"blank_rate"` // share of optional cells left empty
	StartDate        time.Time `json:"start_date"`
	Seed             int64     `json:"seed"`
}

// DefaultOrderSheetConfig returns defaults for a small order sheet
func DefaultOrderSheetConfig() OrderSheetConfig {
	return OrderSheetConfig{
		Orders:           20,
		MaxLinesPerOrder: 4,
		ProductCount:     12,
		BlankRate:        0.05,
		StartDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:             42,
	}
}

// OrderSheetHeader is the header row every generated sheet starts with
var OrderSheetHeader = []string{"Order #", "Order Date", "Customer", "Product Code", "Qty", "Unit Price", "Paid", "Notes"}

// OrderSheetGenerator produces order line grids as a spreadsheet tab would
// return them: display text with currency symbols, mixed date styles,
// yes/no flags and empty cells. One order spans one or more lines.
type OrderSheetGenerator struct {
	config OrderSheetConfig
	rng    *rand.Rand
}

// NewOrderSheetGenerator creates a generator; equal seeds give equal sheets
func NewOrderSheetGenerator(config OrderSheetConfig) *OrderSheetGenerator {
	return &OrderSheetGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns the header row followed by every order line
func (g *OrderSheetGenerator) Generate() [][]string {
	grid := [][]string{append([]string(nil), OrderSheetHeader...)}
	for i := 0; i < g.config.Orders; i++ {
		grid = append(grid, g.orderLines(i+1)...)
	}
	return grid
}

func (g *OrderSheetGenerator) orderLines(n int) [][]string {
	orderNo := fmt.Sprintf("SO-%05d", 1000+n)
	placed := g.config.StartDate.AddDate(0, 0, g.rng.Intn(90))
	customer := customers[g.rng.Intn(len(customers))]
	paid := g.yesNo()

	lines := 1
	if g.config.MaxLinesPerOrder > 1 {
		lines += g.rng.Intn(g.config.MaxLinesPerOrder)
	}

	used := make(map[int]bool)
	out := make([][]string, 0, lines)
	for l := 0; l < lines; l++ {
		product := g.rng.Intn(max(g.config.ProductCount, 1))
		if used[product] {
			continue
		}
		used[product] = true

		out = append(out, []string{
			orderNo,
			g.date(placed),
			customer,
			fmt.Sprintf("P-%03d", product+1),
			strconv.Itoa(1 + g.rng.Intn(5)),
			g.price(),
			paid,
			g.note(),
		})
	}
	return out
}

func (g *OrderSheetGenerator) date(t time.Time) string {
	switch g.rng.Intn(3) {
	case 0:
		return t.Format("2006-01-02")
	case 1:
		return t.Format("1/2/2006")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func (g *OrderSheetGenerator) price() string {
	cents := 199 + g.rng.Intn(120000)
	amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if cents >= 100000 {
		amount = fmt.Sprintf("%d,%03d.%02d", cents/100000, (cents/100)%1000, cents%100)
	}
	if g.rng.Float64() < 0.5 {
		return "$" + amount
	}
	return amount
}

func (g *OrderSheetGenerator) yesNo() string {
	if g.blank() {
		return ""
	}
	if g.rng.Float64() < 0.7 {
		return "Yes"
	}
	return "No"
}

func (g *OrderSheetGenerator) note() string {
	if g.blank() || g.rng.Float64() < 0.6 {
		return ""
	}
	return notes[g.rng.Intn(len(notes))]
}

func (g *OrderSheetGenerator) blank() bool {
	return g.rng.Float64() < g.config.BlankRate
}

var customers = []string{"Acme Corp", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries", "Wayne Enterprises"}

var notes = []string{"gift wrap", "leave at door", "fragile", "call on arrival", "backorder ok"}
