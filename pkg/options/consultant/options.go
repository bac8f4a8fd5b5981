// Package consultant provides the retrieval and dialogue configuration options.
package consultant

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"

	"github.com/lazysoft/consultant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Vector backends.
const (
	VectorBackendSQL      = "sql"
	VectorBackendPGVector = "pgvector"
	VectorBackendMilvus   = "milvus"
)

// Options 定义检索与对话引擎的配置。
type Options struct {
	// Languages 支持的语言列表，第一个为默认语言。
	Languages []string `json:"languages" mapstructure:"languages"`

	// IndexableKinds 允许索引的对象类型。
	IndexableKinds []string `json:"indexable-kinds" mapstructure:"indexable-kinds"`

	// MaxSearchResults 检索默认返回条数。
	MaxSearchResults int `json:"max-search-results" mapstructure:"max-search-results"`

	// SimilarityThreshold 相似度阈值，distance < 1 - threshold 才会被返回。
	SimilarityThreshold float64 `json:"similarity-threshold" mapstructure:"similarity-threshold"`

	// MaxContentChars 单个分块的最大字符数。
	MaxContentChars int `json:"max-content-chars" mapstructure:"max-content-chars"`

	ConsultationURL      string `json:"consultation-url" mapstructure:"consultation-url"`
	ConsultationShortURL string `json:"consultation-short-url" mapstructure:"consultation-short-url"`

	// PersonaNames 顾问名称，按语言区分（例如 uk=Юлія）。
	PersonaNames map[string]string `json:"persona-names" mapstructure:"persona-names"`
	Company      string            `json:"company" mapstructure:"company"`

	// VectorBackend sql, pgvector 或 milvus。
	VectorBackend string `json:"vector-backend" mapstructure:"vector-backend"`

	SessionTTL   time.Duration `json:"session-ttl" mapstructure:"session-ttl"`
	TurnTimeout  time.Duration `json:"turn-timeout" mapstructure:"turn-timeout"`
	KnowledgeDir string        `json:"knowledge-dir" mapstructure:"knowledge-dir"`

	// TurnRateLimit 每个客户端每秒允许的对话请求数，0 表示不限制。
	TurnRateLimit float64 `json:"turn-rate-limit" mapstructure:"turn-rate-limit"`
	TurnRateBurst int     `json:"turn-rate-burst" mapstructure:"turn-rate-burst"`

	IndexWorkers int `json:"index-workers" mapstructure:"index-workers"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Languages:            []string{"uk", "en", "pl"},
		IndexableKinds:       []string{"service", "project", "faq", "pricing", "knowledge", "about", "contact"},
		MaxSearchResults:     10,
		SimilarityThreshold:  0.7,
		MaxContentChars:      5000,
		ConsultationURL:      "https://calendly.com/dchuprina-lazysoft/free-consultation-1h",
		ConsultationShortURL: "https://calendly.com/dchuprina-lazysoft/30min",
		PersonaNames:         map[string]string{"uk": "Юлія", "en": "Julie", "pl": "Julia"},
		Company:              "LazySoft",
		VectorBackend:        VectorBackendSQL,
		SessionTTL:           24 * time.Hour,
		TurnTimeout:          60 * time.Second,
		TurnRateLimit:        1,
		TurnRateBurst:        5,
		IndexWorkers:         4,
	}
}

// AddFlags adds flags for consultant options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "consultant")...)
	fs.StringSliceVar(&o.Languages, p+"languages", o.Languages, "Supported languages, the first one is the default.")
	fs.StringSliceVar(&o.IndexableKinds, p+"indexable-kinds", o.IndexableKinds, "Object kinds allowed into the index.")
	fs.IntVar(&o.MaxSearchResults, p+"max-search-results", o.MaxSearchResults, "Default number of retrieval results.")
	fs.Float64Var(&o.SimilarityThreshold, p+"similarity-threshold", o.SimilarityThreshold, "Minimum similarity of a retrieval hit.")
	fs.IntVar(&o.MaxContentChars, p+"max-content-chars", o.MaxContentChars, "Maximum characters stored per chunk.")
	fs.StringVar(&o.ConsultationURL, p+"consultation-url", o.ConsultationURL, "Booking link for the free consultation.")
	fs.StringVar(&o.ConsultationShortURL, p+"consultation-short-url", o.ConsultationShortURL, "Booking link for the short consultation.")
	fs.StringToStringVar(&o.PersonaNames, p+"persona-names", o.PersonaNames, "Consultant name per language.")
	fs.StringVar(&o.Company, p+"company", o.Company, "Company name used in prompts.")
	fs.StringVar(&o.VectorBackend, p+"vector-backend", o.VectorBackend, "Vector store backend: sql, pgvector or milvus.")
	fs.DurationVar(&o.SessionTTL, p+"session-ttl", o.SessionTTL, "Inactive sessions older than this are expired.")
	fs.DurationVar(&o.TurnTimeout, p+"turn-timeout", o.TurnTimeout, "Upper bound of one dialogue turn.")
	fs.StringVar(&o.KnowledgeDir, p+"knowledge-dir", o.KnowledgeDir, "Directory of YAML knowledge entries to watch (empty disables).")
	fs.Float64Var(&o.TurnRateLimit, p+"turn-rate-limit", o.TurnRateLimit, "Turns per second per client (0 disables).")
	fs.IntVar(&o.TurnRateBurst, p+"turn-rate-burst", o.TurnRateBurst, "Burst size of the turn rate limiter.")
	fs.IntVar(&o.IndexWorkers, p+"index-workers", o.IndexWorkers, "Concurrent workers used by bulk reindex.")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if len(o.Languages) == 0 {
		errs = append(errs, fmt.Errorf("consultant.languages must not be empty"))
	}
	if o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("consultant.similarity-threshold must be within (0, 1]"))
	}
	if o.MaxSearchResults <= 0 {
		errs = append(errs, fmt.Errorf("consultant.max-search-results must be positive"))
	}
	if o.MaxContentChars <= 0 {
		errs = append(errs, fmt.Errorf("consultant.max-content-chars must be positive"))
	}
	if !slices.Contains([]string{VectorBackendSQL, VectorBackendPGVector, VectorBackendMilvus}, o.VectorBackend) {
		errs = append(errs, fmt.Errorf("consultant.vector-backend %q is not supported", o.VectorBackend))
	}
	if o.IndexWorkers <= 0 {
		errs = append(errs, fmt.Errorf("consultant.index-workers must be positive"))
	}
	return errs
}

// DefaultLanguage returns the first configured language.
func (o *Options) DefaultLanguage() string {
	if len(o.Languages) == 0 {
		return "uk"
	}
	return o.Languages[0]
}

// PersonaName returns the consultant name for lang, falling back to the default language.
func (o *Options) PersonaName(lang string) string {
	if n, ok := o.PersonaNames[lang]; ok && n != "" {
		return n
	}
	return o.PersonaNames[o.DefaultLanguage()]
}
