package scraper

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"showtime-scraper/internal/browser"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multikinoFixture = `<html><body>
<ul>
  <li class="filmlist__item">
    <a class="filmlist__info-txt" href="/filmy/dune"><span>Dune</span></a>
    <a class="film-details__item">Sci-Fi</a>
    <a class="film-details__item">Przygodowy</a>
    <p class="filmlist__synopsis--twoLines">  Paul Atreides   unites with the Fremen. </p>
    <img src="/img/dune.jpg">
    <ul>
      <li class="times__detail"><a href="/rezerwacja/abc"><time class="default">18:30</time></a></li>
      <li class="times__detail"><a href="/rezerwacja/def"><time class="default">--:--</time></a></li>
      <li class="times__detail"><a href="/rezerwacja/ghi"><time class="default"></time></a></li>
    </ul>
  </li>
  <li class="filmlist__item">
    <a class="filmlist__info-txt" href="/filmy/bez-tytulu"><span></span></a>
    <ul><li class="times__detail"><a href="/rezerwacja/zzz"><time class="default">12:00</time></a></li></ul>
  </li>
  <li class="filmlist__item">
    <a class="filmlist__info-txt" href="https://multikino.pl/filmy/civil-war"><span>Civil War</span></a>
    <img src="data:image/gif;base64,R0lGOD" data-src="https://cdn.multikino.pl/cw.jpg">
    <ul><li class="times__detail"><a href="https://multikino.pl/rezerwacja/cw1"><time class="default">20:15*</time></a></li></ul>
  </li>
</ul>
</body></html>`

const heliosFixture = `<html><body>
<ul class="seances-list">
  <li>
    <div class="movie-poster"><img src="https://img.helios.pl/kft.jpg"></div>
    <h2 class="movie-title"><a href="/2,krakow/Repertuar/film/kung-fu-panda-4">Kung Fu Panda 4</a></h2>
    <span class="movie-genre">Animacja</span>
    <ul class="hours">
      <li><a href="/2,krakow/Kupbilet/seans/991">10:00</a></li>
      <li><a href="/2,krakow/Kupbilet/seans/992">12.30</a></li>
    </ul>
  </li>
</ul>
</body></html>`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeSession struct {
	r *fakeRenderer
}

func (s *fakeSession) Render(_ context.Context, pageURL, marker string, wait time.Duration) (string, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.urls = append(s.r.urls, pageURL)
	s.r.markers = append(s.r.markers, marker)
	if s.r.panicMsg != "" {
		panic(s.r.panicMsg)
	}
	return s.r.html, s.r.renderErr
}

func (s *fakeSession) Close() error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.closed++
	return nil
}

type fakeRenderer struct {
	mu        sync.Mutex
	html      string
	renderErr error
	startErr  error
	panicMsg  string
	acquired  int
	closed    int
	urls      []string
	markers   []string
}

func (r *fakeRenderer) Acquire(context.Context) (browser.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.acquired++
	return &fakeSession{r: r}, nil
}

type memorySnapshots struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memorySnapshots) PutSnapshot(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = body
	return nil
}

func TestMultikinoFetchExtractsRecords(t *testing.T) {
	renderer := &fakeRenderer{html: multikinoFixture}
	adapter, err := NewMultikinoAdapter("https://multikino.pl", renderer, Options{Logger: quietLogger()})
	require.NoError(t, err)

	loc := Location{City: "krakow", Date: "2024-05-01"}
	records, err := adapter.Fetch(context.Background(), loc)
	require.NoError(t, err)

	require.Len(t, records, 2)
	dune := records[0]
	assert.Equal(t, "Dune", dune.Title)
	assert.Equal(t, "Sci-Fi, Przygodowy", dune.Category)
	assert.Equal(t, "Paul Atreides unites with the Fremen.", dune.Description)
	assert.Equal(t, "https://multikino.pl/img/dune.jpg", dune.ImageURL)
	assert.Equal(t, "https://multikino.pl/filmy/dune", dune.DetailURL)
	require.Len(t, dune.Shows, 2)
	assert.Equal(t, ShowInfo{Hour: "18:30", BookingLink: "https://multikino.pl/rezerwacja/abc"}, dune.Shows[0])
	assert.Equal(t, "--:--", dune.Shows[1].Hour)

	civilWar := records[1]
	assert.Equal(t, DefaultDescription, civilWar.Description)
	assert.Equal(t, "https://cdn.multikino.pl/cw.jpg", civilWar.ImageURL)

	assert.Equal(t, []string{"https://multikino.pl/repertuar/krakow/teraz-gramy?data=2024-05-01"}, renderer.urls)
	assert.Equal(t, []string{".filmlist__item"}, renderer.markers)
	assert.Equal(t, 1, renderer.acquired)
	assert.Equal(t, 1, renderer.closed)
}

func TestHeliosFetchExtractsRecords(t *testing.T) {
	renderer := &fakeRenderer{html: heliosFixture}
	adapter, err := NewHeliosAdapter("https://www.helios.pl/", renderer, Options{Logger: quietLogger()})
	require.NoError(t, err)

	loc := Location{City: "krakow", Date: "2024-05-02", DayOffset: 1, SiteIndex: 2}
	assert.Equal(t, "https://www.helios.pl/2,krakow/Repertuar/index/dzien/1/kino/2", adapter.URL(loc))

	records, err := adapter.Fetch(context.Background(), loc)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Kung Fu Panda 4", records[0].Title)
	assert.Equal(t, "Animacja", records[0].Category)
	assert.Equal(t, DefaultDescription, records[0].Description)
	assert.Equal(t, "https://www.helios.pl/2,krakow/Repertuar/film/kung-fu-panda-4", records[0].DetailURL)
	assert.Equal(t, []ShowInfo{
		{Hour: "10:00", BookingLink: "https://www.helios.pl/2,krakow/Kupbilet/seans/991"},
		{Hour: "12.30", BookingLink: "https://www.helios.pl/2,krakow/Kupbilet/seans/992"},
	}, records[0].Shows)
}

func TestHeliosFetchRequiresSiteIndex(t *testing.T) {
	renderer := &fakeRenderer{html: heliosFixture}
	adapter, err := NewHeliosAdapter("https://www.helios.pl", renderer, Options{Logger: quietLogger()})
	require.NoError(t, err)

	_, err = adapter.Fetch(context.Background(), Location{City: "krakow", Date: "2024-05-01"})
	assert.Error(t, err)
	assert.Zero(t, renderer.acquired)
}

func TestFetchMarkerTimeoutYieldsEmptyResult(t *testing.T) {
	renderer := &fakeRenderer{renderErr: browser.ErrMarkerTimeout}
	adapter, err := NewMultikinoAdapter("https://multikino.pl", renderer, Options{Logger: quietLogger()})
	require.NoError(t, err)

	records, err := adapter.Fetch(context.Background(), Location{City: "krakow", Date: "2024-05-01"})
	assert.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, renderer.closed)
}

func TestFetchNavigationFailureIsReturned(t *testing.T) {
	renderer := &fakeRenderer{renderErr: browser.ErrNavigation}
	adapter, err := NewMultikinoAdapter("https://multikino.pl", renderer, Options{Logger: quietLogger()})
	require.NoError(t, err)

	_, err = adapter.Fetch(context.Background(), Location{City: "krakow", Date: "2024-05-01"})
	assert.ErrorIs(t, err, browser.ErrNavigation)
	assert.Equal(t, 1, renderer.closed)
}

func TestFetchSessionStartFailureIsReturned(t *testing.T) {
	renderer := &fakeRenderer{startErr: browser.ErrSessionStart}
	adapter, err := NewMultikinoAdapter("https://multikino.pl", renderer, Options{Logger: quietLogger()})
	require.NoError(t, err)

	_, err = adapter.Fetch(context.Background(), Location{City: "krakow", Date: "2024-05-01"})
	assert.ErrorIs(t, err, browser.ErrSessionStart)
}

func TestFetchReleasesSessionOnPanic(t *testing.T) {
	renderer := &fakeRenderer{panicMsg: "driver crashed"}
	adapter, err := NewMultikinoAdapter("https://multikino.pl", renderer, Options{Logger: quietLogger()})
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = adapter.Fetch(context.Background(), Location{City: "krakow", Date: "2024-05-01"})
	})
	assert.Equal(t, 1, renderer.closed)
}

func TestFetchArchivesSnapshot(t *testing.T) {
	renderer := &fakeRenderer{html: heliosFixture}
	store := &memorySnapshots{}
	adapter, err := NewHeliosAdapter("https://www.helios.pl", renderer, Options{Logger: quietLogger(), Snapshots: store})
	require.NoError(t, err)

	_, err = adapter.Fetch(context.Background(), Location{City: "krakow", Date: "2024-05-01", SiteIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte(heliosFixture), store.objects["helios/krakow-2/2024-05-01.html"])
}

func TestFetchIgnoresArchiveFailure(t *testing.T) {
	renderer := &fakeRenderer{html: multikinoFixture}
	store := &memorySnapshots{err: errors.New("bucket gone")}
	adapter, err := NewMultikinoAdapter("https://multikino.pl", renderer, Options{Logger: quietLogger(), Snapshots: store})
	require.NoError(t, err)

	records, err := adapter.Fetch(context.Background(), Location{City: "krakow", Date: "2024-05-01"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestNewAdapterRejectsBadBase(t *testing.T) {
	_, err := NewMultikinoAdapter("multikino", &fakeRenderer{}, Options{})
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	base, _ := url.Parse("https://multikino.pl")
	assert.Equal(t, "https://multikino.pl/a/b", resolve(base, " /a/b "))
	assert.Equal(t, "https://x/abc", resolve(base, "https://x/abc"))
	assert.Empty(t, resolve(base, ""))
	assert.Empty(t, resolve(base, "#"))
	assert.Empty(t, resolve(base, "javascript:void(0)"))
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "multikino/krakow/2024-05-01.html", SnapshotKey("multikino", Location{City: "krakow", Date: "2024-05-01"}))
}
