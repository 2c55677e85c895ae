package trainer

import (
	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
)

// evaluate scores m against every held-out verse of the latest tree and
// attaches the scores. Scores are annotations, so the write does not
// trigger retraining.
func (o *Orchestrator) evaluate(m model.Trainable) {
	test := o.tree.Get().ExtractDataset(true, false)
	if test.AlignmentCount() == 0 {
		return
	}
	scores := make(map[tree.Ref]tree.Score, test.AlignmentCount())
	var sumF1 float64
	for _, e := range test.Alignments {
		s := ScoreAlignments(m.Predict(e.Source, e.Target), e.Alignments)
		scores[e.Ref] = s
		sumF1 += s.F1
	}
	o.tree.Update(func(c *tree.Collection) *tree.Collection {
		return c.SetTestScores(scores)
	})
	logging.TrainingEvent("evaluated", "", "verses", len(scores), "mean_f1", sumF1/float64(len(scores)))
}

// ScoreAlignments compares predictions with a manual alignment. A pair
// counts as correct when both n-grams match exactly.
func ScoreAlignments(predicted []model.Prediction, gold []text.Alignment) tree.Score {
	want := make(map[string]bool, len(gold))
	for _, a := range gold {
		want[pairKey(a.Source, a.Target)] = true
	}
	correct := 0
	for _, p := range predicted {
		if want[pairKey(p.Source, p.Target)] {
			correct++
		}
	}

	var s tree.Score
	if len(predicted) > 0 {
		s.Precision = float64(correct) / float64(len(predicted))
	}
	if len(gold) > 0 {
		s.Recall = float64(correct) / float64(len(gold))
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

func pairKey(source, target text.Ngram) string {
	return source.String() + "\x00" + target.String()
}
