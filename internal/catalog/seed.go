package catalog

import "seasonstay/internal/models"

// SourceSeed marks listings loaded from the built-in demo data
const SourceSeed = "seed"

// Partner is a rental platform that lists units on our behalf
type Partner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Partners offered by the partner filter
var Partners = []Partner{
	{ID: "p1", Name: "Airbnb"},
	{ID: "p2", Name: "Booking.com"},
	{ID: "p3", Name: "Abritel"},
}

func f(v float64) *float64 { return &v }

const unsplash = "https://images.unsplash.com/"

// Seed returns the demo catalog: the Alps set followed by the Paris region
// set. IDs are stable across restarts.
func Seed() []models.Listing {
	listings := []models.Listing{
		{
			ID:          1,
			Title:       "Studio moderne au cœur de Grenoble",
			Description: "Charmant studio entièrement rénové, idéalement situé au centre de Grenoble. Proche des transports et des commerces.",
			Price:       550,
			Surface:     25,
			Rooms:       1,
			Type:        models.TypeAppartement,
			Latitude:    f(45.188529),
			Longitude:   f(5.724524),
			City:        "Grenoble",
			Address:     "15 rue de la République, 38000 Grenoble",
			Images: []string{
				unsplash + "photo-1522708323590-d24dbb6b0267?ixlib=rb-4.0.3",
				unsplash + "photo-1502672260266-1c1ef2d93688?ixlib=rb-4.0.3",
			},
		},
		{
			ID:          2,
			Title:       "T3 lumineux avec vue sur les montagnes",
			Description: "Magnifique appartement T3 avec vue panoramique sur les Alpes. Quartier calme et résidentiel de Grenoble.",
			Price:       850,
			Surface:     65,
			Rooms:       3,
			Type:        models.TypeAppartement,
			Latitude:    f(45.185863),
			Longitude:   f(5.735595),
			City:        "Grenoble",
			Address:     "45 boulevard Gambetta, 38000 Grenoble",
			Images: []string{
				unsplash + "photo-1493809842364-78817add7ffb?ixlib=rb-4.0.3",
				unsplash + "photo-1484154218962-a197022b5858?ixlib=rb-4.0.3",
			},
		},
		{
			ID:          3,
			Title:       "Maison de charme à Saint-Ismier",
			Description: "Belle maison familiale avec jardin dans un quartier paisible de Saint-Ismier. Vue imprenable sur la chaîne de Belledonne.",
			Price:       1200,
			Surface:     120,
			Rooms:       5,
			Type:        models.TypeMaison,
			Latitude:    f(45.251421),
			Longitude:   f(5.832677),
			City:        "Saint-Ismier",
			Address:     "10 chemin des Vignes, 38330 Saint-Ismier",
			Images: []string{
				unsplash + "photo-1518780664697-55e3ad937233?ixlib=rb-4.0.3",
				unsplash + "photo-1449844908441-8829872d2607?ixlib=rb-4.0.3",
			},
		},
		{
			ID:          4,
			Title:       "Studio étudiant à Saint-Ismier",
			Description: "Studio parfait pour étudiant, proche des transports. Entièrement meublé et équipé.",
			Price:       480,
			Surface:     20,
			Rooms:       1,
			Type:        models.TypeAppartement,
			Latitude:    f(45.248756),
			Longitude:   f(5.836368),
			City:        "Saint-Ismier",
			Address:     "5 rue des Écoles, 38330 Saint-Ismier",
			Images: []string{
				unsplash + "photo-1536376072261-38c75010e6c9?ixlib=rb-4.0.3",
				unsplash + "photo-1505691938895-1758d7feb511?ixlib=rb-4.0.3",
			},
		},
		{
			ID:          5,
			Title:       "Appartement rénové centre Chambéry",
			Description: "Bel appartement rénové au cœur de Chambéry. Proche de toutes commodités et du château des Ducs de Savoie.",
			Price:       750,
			Surface:     55,
			Rooms:       2,
			Type:        models.TypeAppartement,
			Latitude:    f(45.564601),
			Longitude:   f(5.917781),
			City:        "Chambéry",
			Address:     "8 place Saint-Léger, 73000 Chambéry",
			Images: []string{
				unsplash + "photo-1502005229762-cf1b2da7c5d6?ixlib=rb-4.0.3",
				unsplash + "photo-1554995207-c18c203602cb?ixlib=rb-4.0.3",
			},
		},
		{
			ID:          6,
			Title:       "Maison avec jardin Chambéry",
			Description: "Grande maison familiale avec jardin spacieux. Quartier résidentiel calme de Chambéry.",
			Price:       1100,
			Surface:     110,
			Rooms:       4,
			Type:        models.TypeMaison,
			Latitude:    f(45.570521),
			Longitude:   f(5.920699),
			City:        "Chambéry",
			Address:     "25 rue du Nivolet, 73000 Chambéry",
			Images: []string{
				unsplash + "photo-1416331108676-a22ccb276e35?ixlib=rb-4.0.3",
				unsplash + "photo-1430285561322-7808604715df?ixlib=rb-4.0.3",
			},
		},
	}

	// Paris region, listed through partner platforms
	parisImage := unsplash + "photo-1554995207-c18c203602cb?ixlib=rb-4.0.3"
	paris := []struct {
		title, city, partner string
		lat, lng             float64
		price, surface       float64
		rooms                int
		typ                  models.PropertyType
	}{
		{"Studio Cosy Paris Centre", "Paris", "p1", 48.8566, 2.3522, 800, 25, 1, models.TypeStudio},
		{"Appartement Moderne Versailles", "Versailles", "p2", 48.8049, 2.1204, 1200, 45, 2, models.TypeAppartement},
		{"Loft Spacieux Saint-Denis", "Saint-Denis", "p1", 48.9362, 2.3574, 1100, 55, 2, models.TypeLoft},
		{"Studio Étudiant Nanterre", "Nanterre", "p3", 48.8924, 2.2071, 700, 20, 1, models.TypeStudio},
		{"Maison avec Jardin Melun", "Melun", "p2", 48.5421, 2.6607, 1500, 90, 4, models.TypeMaison},
		{"Appartement Rénové Créteil", "Créteil", "p1", 48.7898, 2.4545, 950, 35, 2, models.TypeAppartement},
	}
	for i, p := range paris {
		listings = append(listings, models.Listing{
			ID:        int64(7 + i),
			Title:     p.title,
			Price:     p.price,
			Surface:   p.surface,
			Rooms:     p.rooms,
			Type:      p.typ,
			Latitude:  f(p.lat),
			Longitude: f(p.lng),
			City:      p.city,
			PartnerID: p.partner,
			Images:    []string{parisImage},
		})
	}

	for i := range listings {
		listings[i].Source = SourceSeed
		listings[i].ExternalID = formatID(listings[i].ID)
	}
	return listings
}
