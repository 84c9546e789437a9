package geocode

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"commute/internal/domain"
)

// Landmark is a well-known place used when geocoding fails.
type Landmark struct {
	Name       string            `mapstructure:"name"`
	Aliases    []string          `mapstructure:"aliases"`
	Coordinate domain.Coordinate `mapstructure:",squash"`
}

// Landmarks is a fallback table matched by substring.
type Landmarks struct {
	entries []landmarkKey
}

type landmarkKey struct {
	key      string
	runes    int
	landmark Landmark
}

// SeoulCityHall is the default city centre.
var SeoulCityHall = domain.NamedLocation{
	Coordinate: domain.Coordinate{Lat: 37.5663, Lng: 126.9779},
	Address:    "서울특별시청",
	Source:     domain.LocationSourceDefault,
}

// DefaultLandmarks returns the built-in Seoul table.
func DefaultLandmarks() []Landmark {
	return []Landmark{
		{Name: "서울시청", Aliases: []string{"서울특별시청", "Seoul City Hall"}, Coordinate: domain.Coordinate{Lat: 37.5663, Lng: 126.9779}},
		{Name: "서울역", Aliases: []string{"Seoul Station"}, Coordinate: domain.Coordinate{Lat: 37.5547, Lng: 126.9707}},
		{Name: "강남역", Aliases: []string{"Gangnam Station"}, Coordinate: domain.Coordinate{Lat: 37.4979, Lng: 127.0276}},
		{Name: "강남", Aliases: []string{"Gangnam"}, Coordinate: domain.Coordinate{Lat: 37.5172, Lng: 127.0473}},
		{Name: "삼성역", Aliases: []string{"Samseong Station", "코엑스", "COEX"}, Coordinate: domain.Coordinate{Lat: 37.5089, Lng: 127.0631}},
		{Name: "잠실역", Aliases: []string{"Jamsil Station"}, Coordinate: domain.Coordinate{Lat: 37.5133, Lng: 127.1001}},
		{Name: "홍대입구역", Aliases: []string{"홍대", "Hongik University Station", "Hongdae"}, Coordinate: domain.Coordinate{Lat: 37.5572, Lng: 126.9245}},
		{Name: "여의도역", Aliases: []string{"여의도", "Yeouido"}, Coordinate: domain.Coordinate{Lat: 37.5216, Lng: 126.9242}},
		{Name: "광화문", Aliases: []string{"광화문역", "Gwanghwamun"}, Coordinate: domain.Coordinate{Lat: 37.5759, Lng: 126.9768}},
		{Name: "명동역", Aliases: []string{"명동", "Myeongdong"}, Coordinate: domain.Coordinate{Lat: 37.5609, Lng: 126.9863}},
		{Name: "청량리역", Aliases: []string{"청량리", "Cheongnyangni"}, Coordinate: domain.Coordinate{Lat: 37.5801, Lng: 127.0470}},
		{Name: "고려대학교", Aliases: []string{"고려대", "고대", "Korea University"}, Coordinate: domain.Coordinate{Lat: 37.5894, Lng: 127.0323}},
		{Name: "판교역", Aliases: []string{"판교", "Pangyo"}, Coordinate: domain.Coordinate{Lat: 37.3948, Lng: 127.1112}},
	}
}

// NewLandmarks indexes the given table.
func NewLandmarks(table []Landmark) *Landmarks {
	l := &Landmarks{}
	for _, lm := range table {
		for _, name := range append([]string{lm.Name}, lm.Aliases...) {
			key := normalize(name)
			if key == "" {
				continue
			}
			l.entries = append(l.entries, landmarkKey{key: key, runes: utf8.RuneCountInString(key), landmark: lm})
		}
	}
	return l
}

// Match returns the landmark whose name or alias is the longest substring of
// address. If none is, it falls back to the shortest key that contains the
// whole address, which needs at least two characters of input.
func (l *Landmarks) Match(address string) (Landmark, bool) {
	q := normalize(address)
	if q == "" {
		return Landmark{}, false
	}

	best := -1
	for i, e := range l.entries {
		if strings.Contains(q, e.key) && (best < 0 || e.runes > l.entries[best].runes) {
			best = i
		}
	}
	if best >= 0 {
		return l.entries[best].landmark, true
	}

	if utf8.RuneCountInString(q) < 2 {
		return Landmark{}, false
	}
	for i, e := range l.entries {
		if strings.Contains(e.key, q) && (best < 0 || e.runes < l.entries[best].runes) {
			best = i
		}
	}
	if best < 0 {
		return Landmark{}, false
	}
	return l.entries[best].landmark, true
}

// normalize lowercases and strips whitespace and punctuation.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
