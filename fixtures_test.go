package lodi

var illinoisNames = []string{
	"Chicago", "Aurora", "Naperville", "Joliet", "Rockford", "Elgin", "Peoria",
	"Champaign", "Waukegan", "Cicero", "Bloomington", "Arlington Heights",
	"Evanston", "Decatur", "Schaumburg", "Bolingbrook", "Palatine", "Skokie",
	"Des Plaines", "Orland Park", "Tinley Park", "Oak Lawn", "Berwyn",
	"Mount Prospect", "Normal", "Wheaton", "Hoffman Estates", "Oak Park",
	"Downers Grove", "Elmhurst", "Glenview", "DeKalb", "Lombard", "Belleville",
	"Moline", "Buffalo Grove", "Bartlett", "Urbana", "Quincy",
	"Springfield",
}

// illinoisCities returns 40 Illinois reference cities, Springfield last.
func illinoisCities() []*CityRecord {
	out := make([]*CityRecord, len(illinoisNames))
	for i, name := range illinoisNames {
		out[i] = &CityRecord{ID: int64(100 + i), City: name, State: "IL", Country: "US"}
	}
	out[len(out)-1].Latitude, out[len(out)-1].Longitude = 39.7817, -89.6501
	return out
}

// fixture is a small reference world shared by the pipeline tests.
type fixture struct {
	cities        *Cities
	google        *GoogleCities
	springfieldIL *CityRecord
	springfieldOH *CityRecord
	chicago       *CityRecord
	columbus      *CityRecord
	berlin        *CityRecord
	munich        *CityRecord
	singapore     *CityRecord
	bavaria       *CityRecord
}

func newFixture() *fixture {
	il := illinoisCities()
	f := &fixture{
		springfieldIL: il[len(il)-1],
		chicago:       il[0],
		springfieldOH: &CityRecord{ID: 200, City: "Springfield", State: "OH", Country: "US", Latitude: 39.9242, Longitude: -83.8088},
		columbus:      &CityRecord{ID: 201, City: "Columbus", State: "OH", Country: "US"},
		berlin:        &CityRecord{ID: 300, City: "Berlin", Country: "DE"},
		munich:        &CityRecord{ID: 301, City: "M\u00fcnchen", Country: "DE"},
		bavaria:       &CityRecord{ID: 302, Region: "Bayern", Country: "DE"},
		singapore:     &CityRecord{ID: 400, City: "Singapore", Country: "Singapore"},
	}
	records := append(il,
		f.springfieldOH,
		f.columbus,
		&CityRecord{ID: 202, City: "Cleveland", State: "OH", Country: "US"},
		f.berlin,
		f.munich,
		f.bavaria,
		f.singapore,
	)
	f.cities = NewCities(records)
	f.google = NewGoogleCities([]GoogleCity{
		{Location: "chicagoilus", City: f.chicago, Confidence: 0.95},
		{Location: "windycityilus", City: f.chicago, Confidence: 0.4},
	}, 0.8)
	return f
}

func cloneRecords(records []*RawRecord) []*RawRecord {
	out := make([]*RawRecord, len(records))
	for i, r := range records {
		cp := *r
		out[i] = &cp
	}
	return out
}
