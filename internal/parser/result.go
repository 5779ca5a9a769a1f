package parser

// Result is the structured record recovered from one title
type Result struct {
	Title        string        `json:"title" yaml:"title" toml:"title"`
	Fansub       string        `json:"fansub,omitempty" yaml:"fansub,omitempty" toml:"fansub,omitempty"`
	Season       *int          `json:"season,omitempty" yaml:"season,omitempty" toml:"season,omitempty"`
	Episode      *int          `json:"episode,omitempty" yaml:"episode,omitempty" toml:"episode,omitempty"`
	EpisodeRange *EpisodeRange `json:"episodeRange,omitempty" yaml:"episodeRange,omitempty" toml:"episodeRange,omitempty"`
	Part         *int          `json:"part,omitempty" yaml:"part,omitempty" toml:"part,omitempty"`

	Type      string `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
	Platform  string `json:"platform,omitempty" yaml:"platform,omitempty" toml:"platform,omitempty"`
	Language  string `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty"`
	Subtitles string `json:"subtitles,omitempty" yaml:"subtitles,omitempty" toml:"subtitles,omitempty"`
	Year      *int   `json:"year,omitempty" yaml:"year,omitempty" toml:"year,omitempty"`
	Month     *int   `json:"month,omitempty" yaml:"month,omitempty" toml:"month,omitempty"`
	Version   *int   `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`

	File File `json:"file" yaml:"file" toml:"file"`

	Tags []string `json:"tags" yaml:"tags" toml:"tags"`
}

// EpisodeRange is an inclusive batch range such as 01-12
type EpisodeRange struct {
	From int `json:"from" yaml:"from" toml:"from"`
	To   int `json:"to" yaml:"to" toml:"to"`
}

// File groups the media-file fields
type File struct {
	Audio     Audio  `json:"audio" yaml:"audio" toml:"audio"`
	Video     Video  `json:"video" yaml:"video" toml:"video"`
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty" toml:"extension,omitempty"`
}

type Audio struct {
	Term string `json:"term,omitempty" yaml:"term,omitempty" toml:"term,omitempty"`
}

type Video struct {
	Term       string `json:"term,omitempty" yaml:"term,omitempty" toml:"term,omitempty"`
	Resolution string `json:"resolution,omitempty" yaml:"resolution,omitempty" toml:"resolution,omitempty"`
}

// Field names a single-valued slot of the Result
type Field int

const (
	FieldSource Field = iota
	FieldPlatform
	FieldType
	FieldLanguage
	FieldSubtitles
	FieldAudioTerm
	FieldVideoTerm
	FieldResolution
	FieldExtension
	FieldYear
	FieldMonth
	FieldVersion
)

var fieldNames = [...]string{
	FieldSource:     "source",
	FieldPlatform:   "platform",
	FieldType:       "type",
	FieldLanguage:   "language",
	FieldSubtitles:  "subtitles",
	FieldAudioTerm:  "file.audio.term",
	FieldVideoTerm:  "file.video.term",
	FieldResolution: "file.video.resolution",
	FieldExtension:  "file.extension",
	FieldYear:       "year",
	FieldMonth:      "month",
	FieldVersion:    "version",
}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[f]
}

func (r *Result) stringField(f Field) *string {
	switch f {
	case FieldSource:
		return &r.Source
	case FieldPlatform:
		return &r.Platform
	case FieldType:
		return &r.Type
	case FieldLanguage:
		return &r.Language
	case FieldSubtitles:
		return &r.Subtitles
	case FieldAudioTerm:
		return &r.File.Audio.Term
	case FieldVideoTerm:
		return &r.File.Video.Term
	case FieldResolution:
		return &r.File.Video.Resolution
	case FieldExtension:
		return &r.File.Extension
	}
	return nil
}

func (r *Result) intField(f Field) **int {
	switch f {
	case FieldYear:
		return &r.Year
	case FieldMonth:
		return &r.Month
	case FieldVersion:
		return &r.Version
	}
	return nil
}

// HasEpisode reports whether a single episode or a batch range was recovered
func (r *Result) HasEpisode() bool {
	return r.Episode != nil || r.EpisodeRange != nil
}
