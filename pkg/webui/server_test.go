package webui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlengine/pkg/logx"
	"mlengine/pkg/predict"
)

type fakePredictor struct {
	got []predict.StudentFeatures
	err error
}

func (f *fakePredictor) Predict(in predict.StudentFeatures) (float64, error) {
	f.got = append(f.got, in)
	if f.err != nil {
		return 0, f.err
	}
	return (in.ReadingScore + in.WritingScore) / 2, nil
}

func (f *fakePredictor) ModelName() string { return "Ridge" }

func newTestServer(t *testing.T, p Predictor) *httptest.Server {
	t.Helper()
	logx.SetOutput(io.Discard)
	t.Cleanup(func() { logx.SetOutput(nil) })

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "stage_runs_total", Help: "test"}))
	srv := httptest.NewServer(NewServer(p, reg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func validForm() url.Values {
	return url.Values{
		"gender":                      {"female"},
		"race_ethnicity":              {"group B"},
		"parental_level_of_education": {"bachelor's degree"},
		"lunch":                       {"standard"},
		"test_preparation_course":     {"none"},
		"reading_score":               {"72"},
		"writing_score":               {"74"},
	}
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	html := body(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, html, `href="/predict"`)
	assert.Contains(t, html, "Serving model: Ridge")

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPredictForm(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{})

	resp, err := http.Get(srv.URL + "/predict")
	require.NoError(t, err)
	html := body(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, f := range formFields {
		assert.Contains(t, html, `name="`+f.Name+`"`)
	}
	assert.Contains(t, html, `name="reading_score"`)
	assert.NotContains(t, html, `id="prediction"`)
}

func TestPredictSubmit(t *testing.T) {
	fake := &fakePredictor{}
	srv := newTestServer(t, fake)

	resp, err := http.PostForm(srv.URL+"/predict", validForm())
	require.NoError(t, err)
	html := body(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, html, `<strong id="prediction">73.00</strong>`)

	require.Len(t, fake.got, 1)
	assert.Equal(t, "bachelor's degree", fake.got[0].ParentalLevelOfEducation)
	assert.Equal(t, 74.0, fake.got[0].WritingScore)
}

func TestPredictRejectsBadScore(t *testing.T) {
	fake := &fakePredictor{}
	srv := newTestServer(t, fake)

	for _, bad := range []string{"abc", "150", ""} {
		form := validForm()
		form.Set("reading_score", bad)
		resp, err := http.PostForm(srv.URL+"/predict", form)
		require.NoError(t, err)
		html := body(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
		assert.Contains(t, html, `class="error"`)
		assert.Contains(t, html, `<form method="post"`)
	}
	assert.Empty(t, fake.got)
}

func TestPredictRejectsUnknownCategory(t *testing.T) {
	fake := &fakePredictor{}
	srv := newTestServer(t, fake)

	form := validForm()
	form.Set("gender", "robot")
	resp, err := http.PostForm(srv.URL+"/predict", form)
	require.NoError(t, err)
	html := body(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, html, "Gender: unknown value robot")
	assert.Empty(t, fake.got)
}

func TestPredictInvalidInputIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{err: fmt.Errorf("%w: lunch", predict.ErrInvalidInput)})
	resp, err := http.PostForm(srv.URL+"/predict", validForm())
	require.NoError(t, err)
	html := body(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, html, "invalid prediction input")
	assert.NotContains(t, html, `id="prediction"`)
}

func TestPredictFailure(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{err: errors.New("broken")})
	resp, err := http.PostForm(srv.URL+"/predict", validForm())
	require.NoError(t, err)
	html := body(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, html, "Prediction failed.")
}

func TestPredictMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{})
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/predict", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	text := body(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(text, "stage_runs_total 0"), text)
}
