package records

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flakeload/pkg/errors"
)

func TestCustomerForEveryLocale(t *testing.T) {
	gen, err := NewGenerator(42)
	require.NoError(t, err)

	countries := map[Locale]string{
		LocaleUS: "United States",
		LocaleAU: "Australia",
		LocaleGB: "United Kingdom",
	}
	phonePrefixes := map[Locale]string{
		LocaleUS: "+1 ",
		LocaleAU: "+61 ",
		LocaleGB: "+44 ",
	}

	for _, locale := range SupportedLocales() {
		t.Run(string(locale), func(t *testing.T) {
			for i := 0; i < 50; i++ {
				c, err := gen.CustomerFor(locale)
				require.NoError(t, err)

				assert.NotEmpty(t, c.CustomerID)
				assert.NotEmpty(t, c.FirstName)
				assert.NotEmpty(t, c.LastName)
				assert.NotEmpty(t, c.Address.Street)
				assert.NotEmpty(t, c.Address.City)
				assert.Equal(t, countries[locale], c.Address.Country)
				assert.True(t, strings.HasPrefix(c.Phone, phonePrefixes[locale]), c.Phone)
				assert.NoError(t, ValidateCustomer(c))
			}
		})
	}
}

func TestUnsupportedLocale(t *testing.T) {
	_, err := NewGenerator(1, LocaleUS, Locale("fr_FR"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedLocale))
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnsupportedLocale))

	gen, err := NewGenerator(1)
	require.NoError(t, err)
	_, err = gen.CustomerFor("de_DE")
	assert.True(t, errors.Is(err, ErrUnsupportedLocale))

	_, err = ParseLocale("xx")
	assert.Error(t, err)

	l, err := ParseLocale(" en_GB ")
	require.NoError(t, err)
	assert.Equal(t, LocaleGB, l)
}

func TestGeneratorRestrictedLocales(t *testing.T) {
	gen, err := NewGenerator(7, LocaleAU)
	require.NoError(t, err)

	customers, err := gen.Customers(20)
	require.NoError(t, err)
	require.Len(t, customers, 20)
	for _, c := range customers {
		assert.Equal(t, "Australia", c.Address.Country)
	}
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	a, err := NewGenerator(99, LocaleUS)
	require.NoError(t, err)
	b, err := NewGenerator(99, LocaleUS)
	require.NoError(t, err)

	ca, err := a.Customer()
	require.NoError(t, err)
	cb, err := b.Customer()
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}

func TestValidateCustomerRejectsInconsistentAddress(t *testing.T) {
	gen, err := NewGenerator(3)
	require.NoError(t, err)

	tests := []struct {
		name   string
		locale Locale
		mutate func(*Customer)
	}{
		{name: "us zip outside state", locale: LocaleUS, mutate: func(c *Customer) { c.Address.State = "California"; c.Address.PostalCode = "10001" }},
		{name: "us zip too short", locale: LocaleUS, mutate: func(c *Customer) { c.Address.PostalCode = "9021" }},
		{name: "au postcode outside state", locale: LocaleAU, mutate: func(c *Customer) { c.Address.State = "VIC"; c.Address.PostalCode = "2000" }},
		{name: "gb postcode malformed", locale: LocaleGB, mutate: func(c *Customer) { c.Address.PostalCode = "12345" }},
		{name: "gb area outside county", locale: LocaleGB, mutate: func(c *Customer) { c.Address.State = "Kent"; c.Address.PostalCode = "M1 1AE" }},
		{name: "unknown country", locale: LocaleGB, mutate: func(c *Customer) { c.Address.Country = "France" }},
		{name: "empty first name", locale: LocaleUS, mutate: func(c *Customer) { c.FirstName = " " }},
		{name: "bad email", locale: LocaleUS, mutate: func(c *Customer) { c.Email = "not-an-email" }},
		{name: "bad phone", locale: LocaleAU, mutate: func(c *Customer) { c.Phone = "0400 000 000" }},
		{name: "bad id", locale: LocaleAU, mutate: func(c *Customer) { c.CustomerID = "42" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := gen.CustomerFor(tt.locale)
			require.NoError(t, err)
			tt.mutate(&c)
			assert.Error(t, ValidateCustomer(c))
		})
	}
}

func TestOrderTotals(t *testing.T) {
	gen, err := NewGenerator(5)
	require.NoError(t, err)
	gen.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	orders, err := gen.Orders(25)
	require.NoError(t, err)

	for _, o := range orders {
		require.NotEmpty(t, o.Items)
		assert.LessOrEqual(t, len(o.Items), 3)
		var sum float64
		for _, item := range o.Items {
			sum += float64(item.Quantity) * item.Price
		}
		assert.InDelta(t, sum, o.TotalAmount, 0.005)
		assert.False(t, o.OrderDate.After(gen.now()))
	}

	o, err := gen.Order("c5d6a7e1-8f1b-4d2c-9a3e-5b6c7d8e9f01")
	require.NoError(t, err)
	assert.Equal(t, "c5d6a7e1-8f1b-4d2c-9a3e-5b6c7d8e9f01", o.CustomerID)

	o.TotalAmount += 1
	assert.True(t, errors.HasCode(ValidateOrder(o), errors.ErrCodeInvalidRecord))
}

func TestPeopleCSVExact(t *testing.T) {
	data, err := PeopleCSV(SamplePeople())
	require.NoError(t, err)
	assert.Equal(t, "id,name,age\n1,Alice,25\n2,Bob,30\n3,Mark,35\n", string(data))
}

func TestEncodeCSVQuotesFields(t *testing.T) {
	data, err := EncodeCSV([]string{"id", "name"}, [][]string{{"1", `Smith, "Jr"`}})
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,\"Smith, \"\"Jr\"\"\"\n", string(data))
}

func TestEncodeNDJSON(t *testing.T) {
	gen, err := NewGenerator(11)
	require.NoError(t, err)
	customers, err := gen.Customers(3)
	require.NoError(t, err)

	data, err := EncodeNDJSON(customers)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, []byte("\n")))

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 3)

	for i, line := range lines {
		var back Customer
		require.NoError(t, json.Unmarshal([]byte(line), &back))
		assert.Equal(t, customers[i], back)
		assert.Contains(t, line, `"customerId"`)
		assert.Contains(t, line, `"postalCode"`)
	}

	empty, err := EncodeNDJSON([]Customer{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOrderMessageRoundTrip(t *testing.T) {
	gen, err := NewGenerator(13)
	require.NoError(t, err)
	o, err := gen.Order("")
	require.NoError(t, err)

	b, err := MarshalOrder(o)
	require.NoError(t, err)
	back, err := UnmarshalOrder(b)
	require.NoError(t, err)
	assert.NoError(t, ValidateOrder(back))
	assert.Equal(t, o.OrderID, back.OrderID)
	assert.True(t, o.OrderDate.Equal(back.OrderDate))

	_, err = UnmarshalOrder([]byte("{"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeSerialization))
}
