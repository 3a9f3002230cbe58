package search

import (
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/benjaminillouz/cemedis-website/internal/centers"
)

type EngineSuite struct {
	suite.Suite
	store *centers.Store
	lock  sync.Mutex
	mu    sync.Mutex
	seen  []Result
	eng   *Engine
}

func (s *EngineSuite) SetupTest() {
	s.store = centers.NewStore()
	s.store.LoadCenters([]centers.Center{
		{Name: "Cemedis Rivoli", City: "Paris"},
		{Name: "Cemedis Bellecour", City: "Lyon"},
		{Name: "Cemedis Vieux-Port", City: "Marseille"},
	})
	s.seen = nil
	s.eng = New(s.store, &s.lock, func(r Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.seen = append(s.seen, r)
	}, 30*time.Millisecond)
}

func (s *EngineSuite) TearDownTest() { s.eng.Close() }

func (s *EngineSuite) results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.seen...)
}

func (s *EngineSuite) TestSubmitAppliesImmediately() {
	r := s.eng.Submit("lyon")
	s.True(r.Applied)
	s.Require().Len(r.Records, 1)
	s.Equal("Cemedis Bellecour", r.Records[0].Name)
	s.Len(s.results(), 1)
	s.Equal("lyon", s.eng.Query())
}

func (s *EngineSuite) TestLiveIsDebounced() {
	s.eng.Live("p")
	s.eng.Live("pa")
	s.eng.Live("paris")
	s.Empty(s.results())
	s.Require().Eventually(func() bool { return len(s.results()) == 1 }, time.Second, 5*time.Millisecond)
	r := s.results()[0]
	s.Equal(ModeLive, r.Mode)
	s.Equal("paris", r.Query)
	s.Len(r.Records, 1)
}

func (s *EngineSuite) TestSubmitOvertakesLive() {
	s.eng.Live("paris")
	r := s.eng.Submit("marseille")
	s.True(r.Applied)
	s.False(s.eng.Pending())
	time.Sleep(80 * time.Millisecond)
	got := s.results()
	s.Require().Len(got, 1)
	s.Equal("marseille", got[0].Query)
	s.Equal("Cemedis Vieux-Port", s.store.Filtered()[0].Name)
}

func (s *EngineSuite) TestStaleRequestIsDropped() {
	stale := s.eng.issue("paris")
	s.eng.HandleQueryChange("lyon")
	r := s.eng.run(stale, ModeLive)
	s.False(r.Applied)
	s.Len(s.results(), 1)
	s.Equal("Cemedis Bellecour", s.store.Filtered()[0].Name)
}

func (s *EngineSuite) TestBootstrap() {
	_, ok := s.eng.Bootstrap(url.Values{})
	s.False(ok)
	r, ok := s.eng.Bootstrap(url.Values{Param: {"  Vieux  "}})
	s.True(ok)
	s.Equal(ModeBootstrap, r.Mode)
	s.Len(r.Records, 1)
}

func (s *EngineSuite) TestEmptyQueryRestoresAll() {
	s.eng.Submit("lyon")
	r := s.eng.Submit("   ")
	s.Len(r.Records, 3)
}

func TestEngineSuite(t *testing.T) { suite.Run(t, new(EngineSuite)) }

func TestSubmitTarget(t *testing.T) {
	to, ok := SubmitTarget("saint denis", false)
	require.True(t, ok)
	assert.Equal(t, "/etablissements?search=saint+denis", to)

	to, ok = SubmitTarget("", false)
	require.True(t, ok)
	assert.Equal(t, "/etablissements?search=", to)

	_, ok = SubmitTarget("lyon", true)
	assert.False(t, ok)
}
