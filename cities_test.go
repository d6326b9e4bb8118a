package lodi

import (
	. "gopkg.in/check.v1"
)

type CitiesSuite struct {
	f *fixture
}

var _ = Suite(&CitiesSuite{})

func (s *CitiesSuite) SetUpTest(c *C) {
	s.f = newFixture()
}

func (s *CitiesSuite) TestLen(c *C) {
	c.Assert(s.f.cities.Len(), Equals, 47)
	c.Assert(s.f.cities.All()[0], Equals, s.f.chicago)
}

func (s *CitiesSuite) TestCityInState(c *C) {
	cities := s.f.cities
	c.Assert(cities.CityInState("Springfield", "IL"), Equals, s.f.springfieldIL)
	c.Assert(cities.CityInState("Springfield", "OH"), Equals, s.f.springfieldOH)
	c.Assert(cities.CityInState("  springfield ", "oh"), Equals, s.f.springfieldOH)
	c.Assert(cities.CityInState("Springfield", "Ohio"), Equals, s.f.springfieldOH)
	c.Assert(cities.CityInState("Springfield", "TX"), IsNil)
	c.Assert(cities.CityInState("", "IL"), IsNil)
	c.Assert(cities.CityInState("Springfield", ""), IsNil)
}

func (s *CitiesSuite) TestCityInStateIsUSOnly(c *C) {
	bogus := &CityRecord{ID: 1, City: "Lyon", State: "IL", Country: "FR"}
	cities := NewCities([]*CityRecord{bogus})
	c.Assert(cities.CityInState("Lyon", "IL"), IsNil)
	c.Assert(cities.State("IL"), HasLen, 0)
	c.Assert(cities.Country("FR"), DeepEquals, []*CityRecord{bogus})
}

func (s *CitiesSuite) TestCityInCountryFoldsUnicode(c *C) {
	cities := s.f.cities
	c.Assert(cities.CityInCountry("München", "DE"), Equals, s.f.munich)
	c.Assert(cities.CityInCountry("München", "de"), Equals, s.f.munich)
	c.Assert(cities.CityInCountry("MÜNCHEN", "DE"), Equals, s.f.munich)
	c.Assert(cities.CityInCountry("Munchen", "DE"), IsNil)
}

func (s *CitiesSuite) TestRegionOnlyRecordsAreNotExact(c *C) {
	c.Assert(s.f.cities.CityInCountry("Bayern", "DE"), IsNil)
	c.Assert(s.f.cities.Country("DE"), HasLen, 3)
}

func (s *CitiesSuite) TestStateAndCountry(c *C) {
	cities := s.f.cities
	c.Assert(cities.State("IL"), HasLen, 40)
	c.Assert(cities.State("Illinois"), HasLen, 40)
	c.Assert(cities.State("OH"), HasLen, 3)
	c.Assert(cities.State("TX"), IsNil)
	c.Assert(cities.State(""), IsNil)
	c.Assert(cities.Country("US"), HasLen, 43)
	c.Assert(cities.Country(""), IsNil)
	c.Assert(cities.Countries(), DeepEquals, []string{"de", "singapore", "us"})
}

func (s *CitiesSuite) TestFirstDuplicateWins(c *C) {
	first := &CityRecord{ID: 1, City: "Paris", State: "TX", Country: "US"}
	second := &CityRecord{ID: 2, City: "paris", State: "Texas", Country: "us"}
	cities := NewCities([]*CityRecord{first, nil, second})
	c.Assert(cities.Len(), Equals, 2)
	c.Assert(cities.CityInState("Paris", "TX"), Equals, first)
	c.Assert(cities.State("TX"), DeepEquals, []*CityRecord{first, second})
	c.Assert(cities.ByID(2), Equals, second)
	c.Assert(cities.ByID(3), IsNil)
}

func (s *CitiesSuite) TestGoogleCitiesThreshold(c *C) {
	g := s.f.google
	c.Assert(g.Len(), Equals, 1)

	city, ok := g.Lookup("chicagoilus")
	c.Assert(ok, Equals, true)
	c.Assert(city, Equals, s.f.chicago)

	_, ok = g.Lookup("windycityilus")
	c.Assert(ok, Equals, false)
	_, ok = g.Lookup("")
	c.Assert(ok, Equals, false)
}

func (s *CitiesSuite) TestGoogleCitiesBoundaryAndDuplicates(c *C) {
	g := NewGoogleCities([]GoogleCity{
		{Location: "a", City: s.f.berlin, Confidence: 0.8},
		{Location: "a", City: s.f.munich, Confidence: 0.99},
		{Location: "b", Confidence: 1},
	}, 0.8)
	c.Assert(g.Len(), Equals, 1)
	city, ok := g.Lookup("a")
	c.Assert(ok, Equals, true)
	c.Assert(city, Equals, s.f.berlin)

	var nilTable *GoogleCities
	_, ok = nilTable.Lookup("a")
	c.Assert(ok, Equals, false)
	c.Assert(nilTable.Len(), Equals, 0)
	c.Assert(nilTable.Entries(), IsNil)
}

func (s *CitiesSuite) TestResolveGoogleCities(c *C) {
	entries := s.f.cities.ResolveGoogleCities([]GoogleCity{
		{Location: "berlinde", CityID: 300, Confidence: 0.9},
		{Location: "atlantisxx", CityID: 99999, Confidence: 0.9},
		{Location: "springfieldohus", CityID: 200, Confidence: 0.5},
	})
	c.Assert(entries, HasLen, 2)
	c.Assert(entries[0].City, Equals, s.f.berlin)
	c.Assert(entries[1].City, Equals, s.f.springfieldOH)
}

func (s *CitiesSuite) TestStateKey(c *C) {
	c.Assert(stateKey("Ohio"), Equals, "oh")
	c.Assert(stateKey(" new york "), Equals, "ny")
	c.Assert(stateKey("OH"), Equals, "oh")
	c.Assert(stateKey("Bavaria"), Equals, "bavaria")
}
