package records

import (
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"flakeload/pkg/errors"
)

// Generator produces validated synthetic customers and orders.
// A Generator is not safe for concurrent use.
type Generator struct {
	faker      *gofakeit.Faker
	strategies []localeStrategy
	now        func() time.Time
}

// NewGenerator returns a generator drawing from the given locales, or from
// every supported locale when none are given. A zero seed draws from a
// random source.
func NewGenerator(seed uint64, locales ...Locale) (*Generator, error) {
	if len(locales) == 0 {
		locales = SupportedLocales()
	}

	strats := make([]localeStrategy, 0, len(locales))
	for _, l := range locales {
		s, err := strategyFor(l)
		if err != nil {
			return nil, err
		}
		strats = append(strats, s)
	}

	return &Generator{
		faker:      gofakeit.New(seed),
		strategies: strats,
		now:        time.Now,
	}, nil
}

// Customer builds a customer in a locale picked at random from the
// generator's set.
func (g *Generator) Customer() (Customer, error) {
	return g.customer(pick(g.faker, g.strategies))
}

// CustomerFor builds a customer in the given locale.
func (g *Generator) CustomerFor(l Locale) (Customer, error) {
	s, err := strategyFor(l)
	if err != nil {
		return Customer{}, err
	}
	return g.customer(s)
}

// Customers builds n customers.
func (g *Generator) Customers(n int) ([]Customer, error) {
	out := make([]Customer, 0, n)
	for i := 0; i < n; i++ {
		c, err := g.Customer()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (g *Generator) customer(s localeStrategy) (Customer, error) {
	first, last := g.faker.FirstName(), g.faker.LastName()
	c := Customer{
		CustomerID: g.faker.UUID(),
		FirstName:  first,
		LastName:   last,
		Email:      emailLocalPart(first) + "." + emailLocalPart(last) + "@" + g.faker.DomainName(),
		Phone:      s.phone(g.faker),
		Address:    s.address(g.faker),
	}
	if err := ValidateCustomer(c); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// Order builds an order with one to three items for customerID. An empty
// customerID gets a fresh identifier.
func (g *Generator) Order(customerID string) (Order, error) {
	if customerID == "" {
		customerID = g.faker.UUID()
	}

	now := g.now().UTC()
	o := Order{
		OrderID:    g.faker.UUID(),
		CustomerID: customerID,
		OrderDate:  g.faker.DateRange(now.AddDate(-1, 0, 0), now).UTC().Truncate(time.Second),
	}

	var total float64
	for i, n := 0, g.faker.Number(1, 3); i < n; i++ {
		item := Item{
			ProductID:   g.faker.UUID(),
			ProductName: g.faker.ProductName(),
			Quantity:    g.faker.Number(1, 10),
			Price:       roundCents(g.faker.Price(1, 20)),
		}
		total += float64(item.Quantity) * item.Price
		o.Items = append(o.Items, item)
	}
	o.TotalAmount = roundCents(total)

	if err := ValidateOrder(o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Orders builds n orders, each for a new customer.
func (g *Generator) Orders(n int) ([]Order, error) {
	out := make([]Order, 0, n)
	for i := 0; i < n; i++ {
		o, err := g.Order("")
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidRecord, "failed to generate order").
				WithContext("index", i)
		}
		out = append(out, o)
	}
	return out, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func emailLocalPart(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "customer"
	}
	return b.String()
}
