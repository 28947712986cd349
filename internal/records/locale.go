package records

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"flakeload/pkg/errors"
)

// Locale identifies one of the supported address/phone conventions.
type Locale string

const (
	LocaleUS Locale = "en_US"
	LocaleAU Locale = "en_AU"
	LocaleGB Locale = "en_GB"
)

// ErrUnsupportedLocale is returned for any locale outside the closed set.
var ErrUnsupportedLocale = errors.New(errors.ErrCodeUnsupportedLocale, "unsupported locale")

// localeStrategy builds and checks locale specific customer fields.
type localeStrategy interface {
	locale() Locale
	country() string
	address(f *gofakeit.Faker) Address
	phone(f *gofakeit.Faker) string
	checkAddress(a Address) error
}

var strategies = map[Locale]localeStrategy{
	LocaleUS: usStrategy{},
	LocaleAU: auStrategy{},
	LocaleGB: gbStrategy{},
}

// SupportedLocales returns the closed set of locales in a stable order.
func SupportedLocales() []Locale {
	out := make([]Locale, 0, len(strategies))
	for l := range strategies {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseLocale validates a locale code such as "en_GB".
func ParseLocale(code string) (Locale, error) {
	l := Locale(strings.TrimSpace(code))
	if _, ok := strategies[l]; !ok {
		return "", unsupported(code)
	}
	return l, nil
}

func strategyFor(l Locale) (localeStrategy, error) {
	s, ok := strategies[l]
	if !ok {
		return nil, unsupported(string(l))
	}
	return s, nil
}

func strategyForCountry(country string) (localeStrategy, error) {
	for _, s := range strategies {
		if s.country() == country {
			return s, nil
		}
	}
	return nil, unsupported(country)
}

func unsupported(code string) error {
	return errors.Wrap(ErrUnsupportedLocale, errors.ErrCodeUnsupportedLocale, fmt.Sprintf("%q is not recognized", code)).
		WithContext("locale", code).
		WithSuggestions(fmt.Sprintf("Use one of %v", SupportedLocales()))
}

var phonePattern = regexp.MustCompile(`^\+[0-9]{1,3} [0-9 ()\-]{7,}$`)

func pick[T any](f *gofakeit.Faker, items []T) T {
	return items[f.Number(0, len(items)-1)]
}

// en_US

type usState struct {
	name        string
	zipPrefixes []string
	cities      []string
}

var usStates = []usState{
	{"California", []string{"90", "91", "92", "93", "94", "95"}, []string{"Los Angeles", "San Diego", "Sacramento", "San Jose"}},
	{"New York", []string{"10", "11", "12", "13", "14"}, []string{"New York", "Buffalo", "Rochester", "Albany"}},
	{"Texas", []string{"75", "76", "77", "78", "79"}, []string{"Houston", "Austin", "Dallas", "San Antonio"}},
	{"Florida", []string{"32", "33", "34"}, []string{"Miami", "Orlando", "Tampa", "Jacksonville"}},
	{"Illinois", []string{"60", "61", "62"}, []string{"Chicago", "Springfield", "Peoria"}},
	{"Washington", []string{"98", "99"}, []string{"Seattle", "Spokane", "Tacoma"}},
	{"Massachusetts", []string{"01", "02"}, []string{"Boston", "Worcester", "Lowell"}},
	{"Colorado", []string{"80", "81"}, []string{"Denver", "Boulder", "Colorado Springs"}},
	{"Georgia", []string{"30", "31"}, []string{"Atlanta", "Savannah", "Augusta"}},
	{"Ohio", []string{"43", "44", "45"}, []string{"Columbus", "Cleveland", "Cincinnati"}},
}

var zipPattern = regexp.MustCompile(`^[0-9]{5}$`)

type usStrategy struct{}

func (usStrategy) locale() Locale  { return LocaleUS }
func (usStrategy) country() string { return "United States" }

func (s usStrategy) address(f *gofakeit.Faker) Address {
	state := pick(f, usStates)
	prefix := pick(f, state.zipPrefixes)
	return Address{
		Street:     streetLine(f),
		City:       pick(f, state.cities),
		State:      state.name,
		PostalCode: prefix + f.Numerify(strings.Repeat("#", 5-len(prefix))),
		Country:    s.country(),
	}
}

func (usStrategy) phone(f *gofakeit.Faker) string {
	return fmt.Sprintf("+1 (%d) %s", f.Number(201, 989), f.Numerify("###-####"))
}

func (usStrategy) checkAddress(a Address) error {
	if !zipPattern.MatchString(a.PostalCode) {
		return fmt.Errorf("zip code %q is not 5 digits", a.PostalCode)
	}
	for _, st := range usStates {
		if st.name != a.State {
			continue
		}
		for _, p := range st.zipPrefixes {
			if strings.HasPrefix(a.PostalCode, p) {
				return nil
			}
		}
		return fmt.Errorf("zip code %q does not belong to %s", a.PostalCode, a.State)
	}
	return fmt.Errorf("unknown US state %q", a.State)
}

// en_AU

type auState struct {
	name   string
	low    int
	high   int
	cities []string
}

var auStates = []auState{
	{"NSW", 2000, 2599, []string{"Sydney", "Newcastle", "Wollongong"}},
	{"ACT", 2600, 2618, []string{"Canberra"}},
	{"VIC", 3000, 3999, []string{"Melbourne", "Geelong", "Ballarat"}},
	{"QLD", 4000, 4999, []string{"Brisbane", "Cairns", "Townsville"}},
	{"SA", 5000, 5799, []string{"Adelaide", "Mount Gambier"}},
	{"WA", 6000, 6797, []string{"Perth", "Fremantle", "Bunbury"}},
	{"TAS", 7000, 7799, []string{"Hobart", "Launceston"}},
	{"NT", 800, 899, []string{"Darwin", "Alice Springs"}},
}

var auPostcodePattern = regexp.MustCompile(`^[0-9]{4}$`)

type auStrategy struct{}

func (auStrategy) locale() Locale  { return LocaleAU }
func (auStrategy) country() string { return "Australia" }

func (s auStrategy) address(f *gofakeit.Faker) Address {
	state := pick(f, auStates)
	return Address{
		Street:     streetLine(f),
		City:       pick(f, state.cities),
		State:      state.name,
		PostalCode: fmt.Sprintf("%04d", f.Number(state.low, state.high)),
		Country:    s.country(),
	}
}

func (auStrategy) phone(f *gofakeit.Faker) string {
	return f.Numerify("+61 4## ### ###")
}

func (auStrategy) checkAddress(a Address) error {
	if !auPostcodePattern.MatchString(a.PostalCode) {
		return fmt.Errorf("postcode %q is not 4 digits", a.PostalCode)
	}
	code, _ := strconv.Atoi(a.PostalCode)
	for _, st := range auStates {
		if st.name != a.State {
			continue
		}
		if code < st.low || code > st.high {
			return fmt.Errorf("postcode %q is outside %s", a.PostalCode, a.State)
		}
		return nil
	}
	return fmt.Errorf("unknown Australian state %q", a.State)
}

// en_GB

type gbCounty struct {
	name  string
	areas []string
	towns []string
}

var gbCounties = []gbCounty{
	{"Greater London", []string{"E", "EC", "N", "NW", "SE", "SW", "W", "WC"}, []string{"London"}},
	{"West Midlands", []string{"B", "CV", "WV"}, []string{"Birmingham", "Coventry", "Wolverhampton"}},
	{"Greater Manchester", []string{"M", "BL", "OL"}, []string{"Manchester", "Bolton", "Oldham"}},
	{"West Yorkshire", []string{"LS", "BD", "HX"}, []string{"Leeds", "Bradford", "Halifax"}},
	{"Merseyside", []string{"L", "CH"}, []string{"Liverpool", "Birkenhead"}},
	{"Kent", []string{"CT", "ME", "TN"}, []string{"Canterbury", "Maidstone", "Tunbridge Wells"}},
	{"Devon", []string{"EX", "PL", "TQ"}, []string{"Exeter", "Plymouth", "Torquay"}},
	{"Oxfordshire", []string{"OX"}, []string{"Oxford", "Banbury"}},
}

// Inward code letters never use C, I, K, M, O or V.
const gbInwardLetters = "ABDEFGHJLNPQRSTUWXYZ"

var gbPostcodePattern = regexp.MustCompile(`^([A-Z]{1,2})[0-9][0-9A-Z]? [0-9][ABD-HJLNP-UW-Z]{2}$`)

type gbStrategy struct{}

func (gbStrategy) locale() Locale  { return LocaleGB }
func (gbStrategy) country() string { return "United Kingdom" }

func (s gbStrategy) address(f *gofakeit.Faker) Address {
	county := pick(f, gbCounties)
	inward := []byte{
		gbInwardLetters[f.Number(0, len(gbInwardLetters)-1)],
		gbInwardLetters[f.Number(0, len(gbInwardLetters)-1)],
	}
	return Address{
		Street:     streetLine(f),
		City:       pick(f, county.towns),
		State:      county.name,
		PostalCode: fmt.Sprintf("%s%d %d%s", pick(f, county.areas), f.Number(1, 20), f.Number(0, 9), inward),
		Country:    s.country(),
	}
}

func (gbStrategy) phone(f *gofakeit.Faker) string {
	return f.Numerify("+44 7### ######")
}

func (gbStrategy) checkAddress(a Address) error {
	m := gbPostcodePattern.FindStringSubmatch(a.PostalCode)
	if m == nil {
		return fmt.Errorf("postcode %q is not a UK postcode", a.PostalCode)
	}
	for _, c := range gbCounties {
		if c.name != a.State {
			continue
		}
		for _, area := range c.areas {
			if area == m[1] {
				return nil
			}
		}
		return fmt.Errorf("postcode area %q does not belong to %s", m[1], a.State)
	}
	return fmt.Errorf("unknown county %q", a.State)
}

func streetLine(f *gofakeit.Faker) string {
	return fmt.Sprintf("%d %s", f.Number(1, 999), f.StreetName())
}
