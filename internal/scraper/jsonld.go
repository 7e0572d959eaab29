package scraper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"seasonstay/internal/models"
)

// SourcePartner marks listings imported from partner pages
const SourcePartner = "partner"

// accommodationTypes are the schema.org types read as a housing unit
var accommodationTypes = map[string]bool{
	"Accommodation":         true,
	"Apartment":             true,
	"House":                 true,
	"SingleFamilyResidence": true,
	"Room":                  true,
	"HotelRoom":             true,
	"Suite":                 true,
	"VacationRental":        true,
}

// ExtractListings returns the accommodations described by the JSON-LD blocks
// of a partner page. Malformed blocks and entries without a title or a
// positive price are skipped.
func ExtractListings(html string, page Page) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page.URL, err)
	}
	base, _ := url.Parse(page.URL)

	var listings []models.Listing
	seen := make(map[string]bool)
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		nodes, err := collectNodes(json.RawMessage(raw))
		if err != nil {
			return
		}
		for _, n := range nodes {
			l, ok := n.listing(page, base)
			if !ok || seen[l.ExternalID] {
				continue
			}
			seen[l.ExternalID] = true
			listings = append(listings, l)
		}
	})
	return listings, nil
}

// node is the subset of a schema.org accommodation (or an Offer wrapping
// one) that maps onto a listing.
type node struct {
	Type          json.RawMessage `json:"@type"`
	ID            string          `json:"@id"`
	Identifier    json.RawMessage `json:"identifier"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	URL           string          `json:"url"`
	Image         json.RawMessage `json:"image"`
	Address       json.RawMessage `json:"address"`
	Geo           *geoCoordinates `json:"geo"`
	FloorSize     *quantity       `json:"floorSize"`
	NumberOfRooms number          `json:"numberOfRooms"`
	Offers        json.RawMessage `json:"offers"`
	Price         number          `json:"price"`
	ItemOffered   *node           `json:"itemOffered"`

	Graph           []json.RawMessage `json:"@graph"`
	ItemListElement []json.RawMessage `json:"itemListElement"`
	Item            json.RawMessage   `json:"item"`
}

type geoCoordinates struct {
	Latitude  number `json:"latitude"`
	Longitude number `json:"longitude"`
}

type quantity struct {
	Value number `json:"value"`
}

type offer struct {
	Price              number `json:"price"`
	PriceCurrency      string `json:"priceCurrency"`
	PriceSpecification *struct {
		Price number `json:"price"`
	} `json:"priceSpecification"`
}

type postalAddress struct {
	StreetAddress   string `json:"streetAddress"`
	PostalCode      string `json:"postalCode"`
	AddressLocality string `json:"addressLocality"`
}

// number accepts a JSON number or a numeric string such as "650,00".
type number struct {
	Value float64
	Valid bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.Value, n.Valid = v, true
	return nil
}

// collectNodes flattens top-level arrays, @graph containers and ItemLists
// into candidate accommodation nodes.
func collectNodes(raw json.RawMessage) ([]node, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		var out []node
		for _, item := range items {
			nodes, err := collectNodes(item)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	}

	var n node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	switch {
	case len(n.Graph) > 0:
		var out []node
		for _, item := range n.Graph {
			nodes, err := collectNodes(item)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	case schemaType(n.Type) == "ItemList":
		var out []node
		for _, elem := range n.ItemListElement {
			var li node
			if err := json.Unmarshal(elem, &li); err != nil {
				return nil, err
			}
			target := elem
			if len(li.Item) > 0 {
				target = li.Item
			}
			nodes, err := collectNodes(target)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	case schemaType(n.Type) == "Offer" && n.ItemOffered != nil:
		item := *n.ItemOffered
		if !item.Price.Valid {
			item.Price = n.Price
		}
		return []node{item}, nil
	case accommodationTypes[schemaType(n.Type)]:
		return []node{n}, nil
	}
	return nil, nil
}

func (n node) listing(page Page, base *url.URL) (models.Listing, bool) {
	title := strings.TrimSpace(n.Name)
	price := n.price()
	if title == "" || price <= 0 {
		return models.Listing{}, false
	}

	l := models.Listing{
		Source:      SourcePartner,
		PartnerID:   page.Partner,
		URL:         resolve(base, n.URL),
		Title:       title,
		Description: strings.TrimSpace(n.Description),
		Price:       price,
		Rooms:       int(n.NumberOfRooms.Value),
		Type:        classify(schemaType(n.Type), title),
		Images:      n.images(base),
	}
	if n.FloorSize != nil {
		l.Surface = n.FloorSize.Value.Value
	}
	if n.Geo != nil && n.Geo.Latitude.Valid && n.Geo.Longitude.Valid {
		lat, lng := n.Geo.Latitude.Value, n.Geo.Longitude.Value
		l.Latitude, l.Longitude = &lat, &lng
	}
	l.Address, l.City = address(n.Address)

	id := identifier(n.Identifier)
	if id == "" {
		id = n.ID
	}
	if id == "" {
		id = l.URL
	}
	if id == "" {
		return models.Listing{}, false
	}
	l.ExternalID = page.Partner + ":" + id
	if l.URL == "" {
		l.URL = page.URL
	}
	return l, true
}

func (n node) price() float64 {
	if n.Price.Valid {
		return n.Price.Value
	}
	var offers []offer
	if err := json.Unmarshal(n.Offers, &offers); err != nil {
		var single offer
		if err := json.Unmarshal(n.Offers, &single); err != nil {
			return 0
		}
		offers = []offer{single}
	}
	for _, o := range offers {
		if o.PriceCurrency != "" && !strings.EqualFold(o.PriceCurrency, "EUR") {
			continue
		}
		if o.Price.Valid {
			return o.Price.Value
		}
		if o.PriceSpecification != nil && o.PriceSpecification.Price.Valid {
			return o.PriceSpecification.Price.Value
		}
	}
	return 0
}

func (n node) images(base *url.URL) []string {
	var out []string
	add := func(u string) {
		if u = resolve(base, u); u != "" {
			out = append(out, u)
		}
	}

	var single string
	if json.Unmarshal(n.Image, &single) == nil {
		add(single)
		return out
	}
	var items []json.RawMessage
	if json.Unmarshal(n.Image, &items) != nil {
		items = []json.RawMessage{n.Image}
	}
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			add(s)
			continue
		}
		var obj struct {
			URL        string `json:"url"`
			ContentURL string `json:"contentUrl"`
		}
		if json.Unmarshal(item, &obj) == nil {
			if obj.URL != "" {
				add(obj.URL)
			} else {
				add(obj.ContentURL)
			}
		}
	}
	return out
}

// classify maps a schema.org type and a title onto our property types
func classify(typ, title string) models.PropertyType {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "studio"):
		return models.TypeStudio
	case strings.Contains(lower, "loft"):
		return models.TypeLoft
	case typ == "House" || typ == "SingleFamilyResidence" || strings.Contains(lower, "maison"):
		return models.TypeMaison
	case typ == "Room" || typ == "HotelRoom":
		return models.TypeStudio
	default:
		return models.TypeAppartement
	}
}

// address returns a one-line address and the locality
func address(raw json.RawMessage) (string, string) {
	if len(raw) == 0 {
		return "", ""
	}
	var line string
	if json.Unmarshal(raw, &line) == nil {
		return strings.TrimSpace(line), ""
	}
	var a postalAddress
	if json.Unmarshal(raw, &a) != nil {
		return "", ""
	}
	var parts []string
	if s := strings.TrimSpace(a.StreetAddress); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(a.PostalCode + " " + a.AddressLocality); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), strings.TrimSpace(a.AddressLocality)
}

func identifier(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	var pv struct {
		Value json.RawMessage `json:"value"`
	}
	if json.Unmarshal(raw, &pv) == nil && len(pv.Value) > 0 {
		return identifier(pv.Value)
	}
	return ""
}

// schemaType returns the first @type, without a schema.org prefix
func schemaType(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var arr []string
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
			return ""
		}
		s = arr[0]
	}
	for _, prefix := range []string{"https://schema.org/", "http://schema.org/"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			return after
		}
	}
	return s
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
