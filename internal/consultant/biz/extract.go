package biz

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
)

// maxFeatureLines 价格包文本中最多包含的特性行数。
const maxFeatureLines = 10

// Extraction 一个对象在某种语言下的可索引内容。
type Extraction struct {
	Title    string
	Text     string
	Category string
	Tags     []string
	Metadata model.JSONMap
}

// Source 已加载的可索引对象。
type Source struct {
	Kind   string
	ID     uint64
	Active bool
	// SourceType 仅对知识条目有效。
	SourceType string
	Extract    func(lang string) Extraction
}

// Loader 按 id 加载某类对象。
type Loader func(ctx context.Context, s store.Factory, id uint64) (*Source, error)

// Capabilities 对象类型到加载器的映射。新增可索引类型只需注册新的 Loader。
type Capabilities struct {
	loaders map[string]Loader
}

// NewCapabilities returns the loaders of every built-in kind.
func NewCapabilities() *Capabilities {
	return &Capabilities{loaders: map[string]Loader{
		model.KindService:   loadService,
		model.KindProject:   loadProject,
		model.KindFAQ:       loadFAQ,
		model.KindPricing:   loadPricing,
		model.KindKnowledge: loadKnowledge,
		model.KindAbout:     loadAbout,
		model.KindContact:   loadContact,
	}}
}

// Register adds or replaces the loader of kind.
func (c *Capabilities) Register(kind string, l Loader) {
	c.loaders[kind] = l
}

// Lookup returns the loader of kind.
func (c *Capabilities) Lookup(kind string) (Loader, bool) {
	l, ok := c.loaders[kind]
	return l, ok
}

func idString(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// textBuilder 跳过空字段，用换行拼接。
type textBuilder struct {
	parts []string
}

func (b *textBuilder) add(label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if label != "" {
		value = label + ": " + value
	}
	b.parts = append(b.parts, value)
}

func (b *textBuilder) String() string {
	return strings.Join(b.parts, "\n")
}

func loadService(ctx context.Context, s store.Factory, id uint64) (*Source, error) {
	svc, err := s.Catalog().Service(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Source{Kind: model.KindService, ID: id, Active: svc.Active, Extract: func(lang string) Extraction {
		l := labelsFor(lang)
		title := svc.Title.Get(lang)
		var b textBuilder
		b.add(l.service, title)
		b.add("", svc.Description.Get(lang))
		b.add("", svc.ShortDescription.Get(lang))
		b.add(l.audience, svc.TargetAudience.Get(lang))
		b.add(l.value, svc.ValueProposition.Get(lang))
		return Extraction{
			Title:    title,
			Text:     b.String(),
			Category: model.CategoryService,
			Metadata: model.JSONMap{
				model.MetaServiceTitle: title,
				model.MetaSlug:         svc.Slug,
				model.MetaURL:          "/services/" + svc.Slug + "/",
			},
		}
	}}, nil
}

func loadProject(ctx context.Context, s store.Factory, id uint64) (*Source, error) {
	p, err := s.Catalog().Project(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Source{Kind: model.KindProject, ID: id, Active: p.Active, Extract: func(lang string) Extraction {
		l := labelsFor(lang)
		title := p.Title.Get(lang)
		var b textBuilder
		b.add(l.project, title)
		b.add("", p.ShortDescription.Get(lang))
		b.add(l.task, p.ClientRequest.Get(lang))
		b.add(l.solution, p.Implementation.Get(lang))
		b.add(l.result, p.Results.Get(lang))
		return Extraction{
			Title:    title,
			Text:     b.String(),
			Category: model.CategoryProject,
			Tags:     p.Tags,
			Metadata: model.JSONMap{
				model.MetaSlug: p.Slug,
				model.MetaURL:  "/projects/" + p.Slug + "/",
			},
		}
	}}, nil
}

func loadFAQ(ctx context.Context, s store.Factory, id uint64) (*Source, error) {
	f, err := s.Catalog().FAQ(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Source{Kind: model.KindFAQ, ID: id, Active: f.Active, Extract: func(lang string) Extraction {
		l := labelsFor(lang)
		q := f.Question.Get(lang)
		var b textBuilder
		b.add(l.question, q)
		b.add(l.answer, f.Answer.Get(lang))
		return Extraction{Title: q, Text: b.String(), Category: model.CategoryFAQ}
	}}, nil
}

func loadPricing(ctx context.Context, s store.Factory, id uint64) (*Source, error) {
	p, err := s.Catalog().Pricing(ctx, id)
	if err != nil {
		return nil, err
	}
	active := p.Active && p.Service.Active
	return &Source{Kind: model.KindPricing, ID: id, Active: active, Extract: func(lang string) Extraction {
		return extractPricing(p, lang)
	}}, nil
}

func extractPricing(p *model.ServicePricing, lang string) Extraction {
	l := labelsFor(lang)
	service := p.Service.Title.Get(lang)
	pkg := p.Tier.Label(lang)
	currency := p.CurrencyOrDefault()

	var b textBuilder
	b.add(l.service, service)
	b.add(l.pkg, pkg)
	b.add(l.price, FormatPrice(p.PriceFrom, p.PriceTo, currency))
	b.add(l.timeline, formatTimeline(p.TimelineWeeksFrom, p.TimelineWeeksTo, l.weeks))

	var features []string
	for _, line := range strings.Split(p.Features.Get(lang), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			features = append(features, line)
		}
		if len(features) == maxFeatureLines {
			break
		}
	}
	b.add(l.features, strings.Join(features, "; "))

	meta := model.JSONMap{
		model.MetaServiceTitle: service,
		model.MetaPackageName:  pkg,
		model.MetaCurrency:     currency,
		model.MetaSlug:         p.Service.Slug,
		model.MetaURL:          "/services/" + p.Service.Slug + "/",
	}
	if p.PriceFrom != nil {
		meta[model.MetaPriceFrom] = *p.PriceFrom
	}
	if p.PriceTo != nil {
		meta[model.MetaPriceTo] = *p.PriceTo
	}

	title := service
	if pkg != "" {
		title = service + " - " + pkg
	}
	return Extraction{Title: title, Text: b.String(), Category: model.CategoryPricing, Metadata: meta}
}

// FormatPrice renders "X - Y USD" for a range, "X USD" for a single bound
// or equal bounds, and "" when no bound is known.
func FormatPrice(from, to *float64, currency string) string {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	switch {
	case from != nil && to != nil && *from != *to:
		return fmt.Sprintf("%s - %s %s", num(*from), num(*to), currency)
	case from != nil:
		return num(*from) + " " + currency
	case to != nil:
		return num(*to) + " " + currency
	default:
		return ""
	}
}

func formatTimeline(from, to *int, unit string) string {
	switch {
	case from != nil && to != nil && *from != *to:
		return fmt.Sprintf("%d-%d %s", *from, *to, unit)
	case from != nil:
		return fmt.Sprintf("%d %s", *from, unit)
	case to != nil:
		return fmt.Sprintf("%d %s", *to, unit)
	default:
		return ""
	}
}

func loadKnowledge(ctx context.Context, s store.Factory, id uint64) (*Source, error) {
	e, err := s.Knowledge().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Source{Kind: model.KindKnowledge, ID: id, Active: e.Active, SourceType: e.SourceType, Extract: func(lang string) Extraction {
		content := e.Content.First(lang, "uk", "en", "pl")
		var b textBuilder
		b.add("", e.Title)
		b.add("", content)
		return Extraction{
			Title:    e.Title,
			Text:     b.String(),
			Category: model.CategoryManual,
			Tags:     e.Tags,
			Metadata: model.JSONMap{
				model.MetaPriority: e.Priority,
				"source_type":      e.SourceType,
			},
		}
	}}, nil
}

func loadAbout(ctx context.Context, s store.Factory, id uint64) (*Source, error) {
	a, err := s.Catalog().About(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Source{Kind: model.KindAbout, ID: id, Active: a.Active, Extract: func(lang string) Extraction {
		l := labelsFor(lang)
		title := a.Title.Get(lang)
		var b textBuilder
		b.add("", title)
		b.add("", a.ShortDescription.Get(lang))
		b.add(l.mission, a.Mission.Get(lang))
		b.add(l.story, a.Story.Get(lang))
		return Extraction{Title: title, Text: b.String(), Category: model.CategoryAbout,
			Metadata: model.JSONMap{model.MetaURL: "/about/"}}
	}}, nil
}

func loadContact(ctx context.Context, s store.Factory, id uint64) (*Source, error) {
	c, err := s.Catalog().Contact(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Source{Kind: model.KindContact, ID: id, Active: c.Active, Extract: func(lang string) Extraction {
		l := labelsFor(lang)
		title := c.Title.Get(lang)
		var b textBuilder
		b.add("", title)
		b.add("", c.Description.Get(lang))
		b.add(l.address, c.Address.Get(lang))
		b.add(l.phone, c.Phone)
		b.add(l.email, c.Email)
		b.add(l.hours, c.WorkingHours.Get(lang))
		return Extraction{Title: title, Text: b.String(), Category: model.CategoryContact,
			Metadata: model.JSONMap{model.MetaURL: "/contacts/"}}
	}}, nil
}
