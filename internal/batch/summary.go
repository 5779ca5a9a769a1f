package batch

import "sort"

// Summary counts what the parser recognised across a batch
type Summary struct {
	Total        int            `json:"total" yaml:"total" toml:"total"`
	WithFansub   int            `json:"withFansub" yaml:"withFansub" toml:"withFansub"`
	WithEpisode  int            `json:"withEpisode" yaml:"withEpisode" toml:"withEpisode"`
	WithSeason   int            `json:"withSeason" yaml:"withSeason" toml:"withSeason"`
	Untitled     int            `json:"untitled" yaml:"untitled" toml:"untitled"`
	ByResolution map[string]int `json:"byResolution" yaml:"byResolution" toml:"byResolution"`
	ByType       map[string]int `json:"byType" yaml:"byType" toml:"byType"`
	ByLanguage   map[string]int `json:"byLanguage" yaml:"byLanguage" toml:"byLanguage"`
	ByFansub     map[string]int `json:"byFansub" yaml:"byFansub" toml:"byFansub"`
}

// Summarize tallies entries
func Summarize(entries []Entry) Summary {
	s := Summary{
		ByResolution: make(map[string]int),
		ByType:       make(map[string]int),
		ByLanguage:   make(map[string]int),
		ByFansub:     make(map[string]int),
	}

	for _, e := range entries {
		r := e.Result
		if r == nil {
			continue
		}
		s.Total++

		if r.Fansub != "" {
			s.WithFansub++
			s.ByFansub[r.Fansub]++
		}
		if r.HasEpisode() {
			s.WithEpisode++
		}
		if r.Season != nil {
			s.WithSeason++
		}
		if r.Title == "" {
			s.Untitled++
		}
		if r.File.Video.Resolution != "" {
			s.ByResolution[r.File.Video.Resolution]++
		}
		if r.Type != "" {
			s.ByType[r.Type]++
		}
		if r.Language != "" {
			s.ByLanguage[r.Language]++
		}
	}

	return s
}

// Count is one key of a tally map
type Count struct {
	Key   string
	Count int
}

// Sorted orders a tally by count, then key
func Sorted(m map[string]int) []Count {
	counts := make([]Count, 0, len(m))
	for k, v := range m {
		counts = append(counts, Count{Key: k, Count: v})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Key < counts[j].Key
	})
	return counts
}
