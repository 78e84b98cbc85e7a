package creative

import (
	"github.com/supercrema/adforge/pkg/errors"
)

// Texts carries the text settings attached to a creative.
type Texts struct {
	PrimaryTexts []string
	Headlines    []string
	CTA          string
	StoreURL     string
}

// Truncate enforces the network ceiling of five entries per text type,
// keeping input order.
func (t Texts) Truncate() Texts {
	out := t
	if len(out.PrimaryTexts) > MaxTextsPerType {
		out.PrimaryTexts = out.PrimaryTexts[:MaxTextsPerType]
	}
	if len(out.Headlines) > MaxTextsPerType {
		out.Headlines = out.Headlines[:MaxTextsPerType]
	}
	return out
}

// Unit is one validated logical ad: the group of assets it is built from
// and its derived name.
type Unit struct {
	Group *CreativeGroup
	Name  string
}

// ValidationResult is the output of a successful validation pass.
type ValidationResult struct {
	// Units lists the ads to create, one per unit.
	Units []Unit
	// Texts holds the truncated text settings shared by all units.
	Texts Texts
}

// Validate checks a submission's assets against the chosen format's rules
// and derives ad names. It is a pure function of its inputs: no state is
// mutated and no network call is made. Failures carry
// errors.ErrorTypeValidation.
func Validate(format Format, assets []*MediaAsset, texts Texts, nc NamingContext) (*ValidationResult, error) {
	if len(assets) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "no assets supplied")
	}

	result := &ValidationResult{Texts: texts.Truncate()}

	switch format {
	case FormatSingleVideo:
		if len(assets) != 1 {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"single-video format takes exactly one asset, got %d", len(assets))
		}
		group := &CreativeGroup{Base: GroupBase(assets[0].Filename), Assets: assets}
		result.Units = append(result.Units, Unit{
			Group: group,
			Name:  DeriveName(assets, format, nc),
		})

	case FormatDynamicSingleVideo:
		required := format.GroupSizes()
		for _, group := range GroupBySize(assets) {
			if missing := group.MissingSizes(required); len(missing) > 0 {
				return nil, errors.Newf(errors.ErrorTypeValidation,
					"group %q is missing size %s", group.Base, missing[0]).
					WithDetail("group", group.Base)
			}
			result.Units = append(result.Units, Unit{
				Group: group,
				Name:  GroupName(group, nc),
			})
		}

	case FormatDynamic1x1, FormatDynamic16x9, FormatDynamic9x16:
		if len(assets) > MaxDynamicAssets {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"%s format allows at most %d assets, got %d", format, MaxDynamicAssets, len(assets))
		}
		required := format.SingleSize()
		for _, a := range assets {
			if a.Size != required {
				return nil, errors.Newf(errors.ErrorTypeValidation,
					"asset %q is %s, %s format requires %s", a.Filename, a.Size, format, required).
					WithDetail("asset", a.Filename)
			}
		}
		group := &CreativeGroup{Base: GroupBase(assets[0].Filename), Assets: assets}
		result.Units = append(result.Units, Unit{
			Group: group,
			Name:  DeriveName(assets, format, nc),
		})

	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown ad format %q", format)
	}

	return result, nil
}
