package models

// CategoryGroup is one top-level genre group and its leaf categories in
// display order.
type CategoryGroup struct {
	ID            int
	Name          string
	Subcategories []string
}

// Categories is the fixed taxonomy. Do not mutate.
var Categories = []CategoryGroup{
	{ID: 1, Name: "Bass music", Subcategories: []string{
		"Drum & bass", "Dubstep", "Grime", "Jersey Club", "Jungle",
	}},
	{ID: 2, Name: "Dance music", Subcategories: []string{
		"Acid House", "Afro House", "Afrobeats", "Amapiano", "Deep House",
		"Disco", "Garage", "Hardstyle", "House", "Minimal", "Progressive House",
		"Psytrance", "Slap House", "Tech House", "Trance",
	}},
	{ID: 3, Name: "Electronic", Subcategories: []string{
		"Ambient", "Chill-Out", "Downtempo", "Electro", "IDM", "Trip Hop",
	}},
	{ID: 4, Name: "Hip-Hop", Subcategories: []string{
		"Boom bap", "Drill", "Lo-Fi", "Phonk", "Reggaeton", "R&B", "Trap", "West Cost",
	}},
	{ID: 5, Name: "International", Subcategories: []string{
		"African", "Asian", "Bossa Nova", "Brazilian", "Caribbean", "Cuban",
		"Dancehall", "Indian", "Latin American", "Middle Eastern", "Reggae",
	}},
	{ID: 6, Name: "Live", Subcategories: []string{
		"Blues", "Classic R&B", "Classical", "Country", "Folk", "Funk", "Gospel",
		"Indie Rock", "Jazz", "Metal", "Post-Punk", "Punk", "Rock", "Soul",
	}},
	{ID: 7, Name: "Pop/EDM", Subcategories: []string{
		"EDM", "Electropop", "Future House", "Hyperpop", "K-Pop", "Moombahton",
		"Pop", "Synthwave", "Tropical House",
	}},
	{ID: 8, Name: "Soundtrack", Subcategories: []string{
		"Cinematic", "Video Game",
	}},
}

var leafToGroup = func() map[string]string {
	m := make(map[string]string)
	for _, g := range Categories {
		for _, leaf := range g.Subcategories {
			m[leaf] = g.Name
		}
	}
	return m
}()

// IsKnownCategory reports whether leaf is part of the taxonomy. Matching is
// exact and case-sensitive.
func IsKnownCategory(leaf string) bool {
	_, ok := leafToGroup[leaf]
	return ok
}

// GroupOf returns the genre group a leaf category belongs to.
func GroupOf(leaf string) (string, bool) {
	g, ok := leafToGroup[leaf]
	return g, ok
}
