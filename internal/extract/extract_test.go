package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/clock/manual"
)

const profilePage = `<html><body>
<main>
  <h1>  Jane
      Doe </h1>
  <div class="text-body-medium break-words">Head of Growth at Acme</div>
  <span class="text-body-small inline t-black--light break-words">Austin, Texas</span>
  <section>
    <div id="about"></div>
    <div class="display-flex"><span aria-hidden="true">Building teams that ship.</span></div>
  </section>
</main>
</body></html>`

const reactionsPage = `<html><body>
<ul class="social-details-reactors-tab-body">
  <li class="social-details-reactors-tab-body-list-item">
    <a href="/in/alice-smith/?miniProfileUrn=abc">
      <div class="artdeco-entity-lockup__title"><span aria-hidden="true">Alice Smith</span></div>
      <div class="artdeco-entity-lockup__caption">CTO at Initech</div>
    </a>
  </li>
  <li class="social-details-reactors-tab-body-list-item">
    <a href="https://www.linkedin.com/in/Bob-Jones">Bob Jones</a>
  </li>
  <li class="social-details-reactors-tab-body-list-item">
    <a href="/company/acme">Acme Inc</a>
  </li>
</ul>
</body></html>`

func newExtractor() *Extractor {
	return New(Selectors{}, manual.New(time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)))
}

func TestProfileExtractsFields(t *testing.T) {
	t.Parallel()

	rec, err := newExtractor().Profile(profilePage, "https://www.linkedin.com/in/Jane-Doe/?trk=feed")
	require.NoError(t, err)
	require.Equal(t, "https://www.linkedin.com/in/jane-doe", rec.ID)
	require.Equal(t, "Jane Doe", rec.Name)
	require.Equal(t, "Head of Growth at Acme", rec.Headline)
	require.Equal(t, "Austin, Texas", rec.Location)
	require.Equal(t, "Building teams that ship.", rec.Text)
	require.Equal(t, "https://www.linkedin.com/in/Jane-Doe/?trk=feed", rec.SourceURL)
	require.Equal(t, time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC), rec.ExtractedAt)
}

func TestProfileMissingNameFails(t *testing.T) {
	t.Parallel()

	_, err := newExtractor().Profile("<html><body><p>login wall</p></body></html>", "https://www.linkedin.com/in/x")
	require.ErrorIs(t, err, ErrSelectorNotFound)

	_, err = newExtractor().Profile(profilePage, "not a url")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestReactorsResolveAndSkipNonProfiles(t *testing.T) {
	t.Parallel()

	recs, err := newExtractor().Reactors(reactionsPage, "https://www.linkedin.com/feed/update/urn:li:activity:1/")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.Equal(t, "https://www.linkedin.com/in/alice-smith", recs[0].ID)
	require.Equal(t, "Alice Smith", recs[0].Name)
	require.Equal(t, "CTO at Initech", recs[0].Headline)

	require.Equal(t, "https://www.linkedin.com/in/bob-jones", recs[1].ID)
	require.Equal(t, "Bob Jones", recs[1].Name)
	require.Equal(t, "https://www.linkedin.com/feed/update/urn:li:activity:1/", recs[1].SourceURL)

	empty, err := newExtractor().Reactors("<html></html>", "https://www.linkedin.com/feed/update/1")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestNormalizeProfileURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://www.linkedin.com/in/john-doe/":         "https://www.linkedin.com/in/john-doe",
		"http://WWW.LinkedIn.com/in/John-Doe?trk=x#top": "https://www.linkedin.com/in/john-doe",
		" https://www.linkedin.com/in/john-doe ":        "https://www.linkedin.com/in/john-doe",
	}
	for in, want := range cases {
		got, err := NormalizeProfileURL(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}

	for _, bad := range []string{"", "/in/relative", "ftp://example.com/in/x", "://broken"} {
		_, err := NormalizeProfileURL(bad)
		require.ErrorIs(t, err, ErrInvalidURL, bad)
	}
}
