package store

// Trend compares a score with the previous run's.
type Trend string

// Trends.
const (
	TrendFirstRun  Trend = "FIRST_RUN"
	TrendImproving Trend = "IMPROVING"
	TrendDeclining Trend = "DECLINING"
	TrendSame      Trend = "SAME"
)

// Compare returns how score moved from prev. A nil prev is the first run.
func Compare(prev *Entry, score int) Trend {
	switch {
	case prev == nil:
		return TrendFirstRun
	case score > prev.Score:
		return TrendImproving
	case score < prev.Score:
		return TrendDeclining
	default:
		return TrendSame
	}
}

// Delta returns score - prev.Score, or 0 for the first run.
func Delta(prev *Entry, score int) int {
	if prev == nil {
		return 0
	}
	return score - prev.Score
}

// History summarizes the newest-first list returned by List.
type History struct {
	Entries []Entry `json:"entries"`
	Trend   Trend   `json:"trend"`
	Average float64 `json:"average_score"`
	Best    int     `json:"best_score"`
	Worst   int     `json:"worst_score"`
}

// Summarize computes the trend of the newest run against the one before it
// and simple statistics over all of them.
func Summarize(entries []Entry) History {
	h := History{Entries: entries, Trend: TrendFirstRun}
	if len(entries) == 0 {
		h.Entries = []Entry{}
		return h
	}
	if len(entries) > 1 {
		h.Trend = Compare(&entries[1], entries[0].Score)
	}
	h.Best, h.Worst = entries[0].Score, entries[0].Score
	sum := 0
	for _, e := range entries {
		sum += e.Score
		h.Best = max(h.Best, e.Score)
		h.Worst = min(h.Worst, e.Score)
	}
	h.Average = float64(int64(float64(sum)/float64(len(entries))*10+0.5)) / 10
	return h
}
