package webui

import (
	"errors"
	"net/http"
	"slices"

	"mlengine/pkg/predict"
)

type selectField struct {
	Name    string
	Label   string
	Options []string
	Value   string
}

// formFields lists the categorical inputs in form order.
var formFields = []selectField{
	{Name: "gender", Label: "Gender", Options: []string{"female", "male"}},
	{Name: "race_ethnicity", Label: "Race or ethnicity", Options: []string{"group A", "group B", "group C", "group D", "group E"}},
	{Name: "parental_level_of_education", Label: "Parental level of education", Options: []string{
		"associate's degree", "bachelor's degree", "high school", "master's degree", "some college", "some high school",
	}},
	{Name: "lunch", Label: "Lunch", Options: []string{"free/reduced", "standard"}},
	{Name: "test_preparation_course", Label: "Test preparation course", Options: []string{"completed", "none"}},
}

type predictPage struct {
	page
	Fields       []selectField
	ReadingScore string
	WritingScore string
	Error        string
	HasResult    bool
	Result       float64
}

func (s *Server) newPredictPage(r *http.Request) predictPage {
	p := predictPage{page: s.page("Predict Math Score")}
	p.Fields = make([]selectField, len(formFields))
	for i, f := range formFields {
		f.Value = r.FormValue(f.Name)
		p.Fields[i] = f
	}
	p.ReadingScore = r.FormValue("reading_score")
	p.WritingScore = r.FormValue("writing_score")
	return p
}

// handlePredict implements GET and POST /predict.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, http.StatusOK, "predict.html", s.newPredictPage(r))
	case http.MethodPost:
		s.handlePredictSubmit(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePredictSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	p := s.newPredictPage(r)

	for _, f := range p.Fields {
		if !slices.Contains(f.Options, f.Value) {
			p.Error = f.Label + ": unknown value " + f.Value
			s.render(w, http.StatusBadRequest, "predict.html", p)
			return
		}
	}
	reading, err := predict.ParseScore(p.ReadingScore)
	if err != nil {
		p.Error = "Reading score: " + err.Error()
		s.render(w, http.StatusBadRequest, "predict.html", p)
		return
	}
	writing, err := predict.ParseScore(p.WritingScore)
	if err != nil {
		p.Error = "Writing score: " + err.Error()
		s.render(w, http.StatusBadRequest, "predict.html", p)
		return
	}

	if s.predictor == nil {
		p.Error = "No model is loaded."
		s.render(w, http.StatusServiceUnavailable, "predict.html", p)
		return
	}
	result, err := s.predictor.Predict(predict.StudentFeatures{
		Gender:                   r.FormValue("gender"),
		RaceEthnicity:            r.FormValue("race_ethnicity"),
		ParentalLevelOfEducation: r.FormValue("parental_level_of_education"),
		Lunch:                    r.FormValue("lunch"),
		TestPreparationCourse:    r.FormValue("test_preparation_course"),
		ReadingScore:             reading,
		WritingScore:             writing,
	})
	if errors.Is(err, predict.ErrInvalidInput) {
		p.Error = err.Error()
		s.render(w, http.StatusBadRequest, "predict.html", p)
		return
	}
	if err != nil {
		s.logger.Error("Prediction failed: %v", err)
		p.Error = "Prediction failed."
		s.render(w, http.StatusInternalServerError, "predict.html", p)
		return
	}
	p.HasResult = true
	p.Result = result
	s.render(w, http.StatusOK, "predict.html", p)
}
