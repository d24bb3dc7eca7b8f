package services

import (
	"sort"
	"strings"
)

// 披露项标识，按字典序即为输出顺序
const (
	DisclosureBedBugs   = "bed_bugs"
	DisclosureFloodZone = "flood_zone"
	DisclosureLeadPaint = "lead_paint"
	DisclosureMold      = "mold"
	DisclosureRadon     = "radon"
)

// DisclosureSource 披露项来源
type DisclosureSource string

const (
	DisclosureSourceCaller       DisclosureSource = "caller"
	DisclosureSourceJurisdiction DisclosureSource = "jurisdiction"
)

// WarningCode 非致命警告码
type WarningCode string

const (
	WarningJurisdictionUnresolved WarningCode = "JURISDICTION_UNRESOLVED"
	WarningUtilityUnassigned      WarningCode = "UTILITY_UNASSIGNED"
	WarningRentDueDayClamped      WarningCode = "RENT_DUE_DAY_CLAMPED"
)

// Warning 生成过程中的非致命警告，生成继续
type Warning struct {
	Code    WarningCode `json:"code"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

// ResolvedDisclosure 最终披露项
type ResolvedDisclosure struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Body   string           `json:"body"`
	Source DisclosureSource `json:"source"`
}

// DisclosureSet 解析结果
type DisclosureSet struct {
	Jurisdiction string               `json:"jurisdiction"`
	Resolved     bool                 `json:"resolved"`
	Items        []ResolvedDisclosure `json:"items"`
	Warnings     []Warning            `json:"warnings,omitempty"`
}

// IDs 披露项标识列表
func (s DisclosureSet) IDs() []string {
	ids := make([]string, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.ID
	}
	return ids
}

// Contains 是否包含指定披露项
func (s DisclosureSet) Contains(id string) bool {
	for _, item := range s.Items {
		if item.ID == id {
			return true
		}
	}
	return false
}

type disclosureText struct {
	title string
	body  string
}

var disclosureCatalog = map[string]disclosureText{
	DisclosureBedBugs: {
		title: "Bed Bug Disclosure",
		body:  "Landlord discloses the bed bug infestation history of the premises known to Landlord. Tenant shall promptly report any suspected infestation.",
	},
	DisclosureFloodZone: {
		title: "Flood Zone Disclosure",
		body:  "The premises may be located in a special flood hazard area. Tenant is advised that renters insurance does not typically cover flood damage.",
	},
	DisclosureLeadPaint: {
		title: "Lead-Based Paint Disclosure",
		body:  "Housing built before 1978 may contain lead-based paint. Landlord must disclose known lead-based paint and hazards and provide the federally approved pamphlet on lead poisoning prevention.",
	},
	DisclosureMold: {
		title: "Mold Disclosure",
		body:  "Landlord discloses any known mold conditions on the premises. Tenant shall keep the premises ventilated and report moisture or visible mold growth.",
	},
	DisclosureRadon: {
		title: "Radon Gas Disclosure",
		body:  "Radon is a naturally occurring radioactive gas that may accumulate in buildings in sufficient quantities to present health risks. Testing may be obtained from public health units.",
	},
}

// jurisdictionRules 法域强制披露规则表，键为规范化法域代码
var jurisdictionRules = map[string][]string{
	"US":    {},
	"US-CA": {DisclosureBedBugs, DisclosureFloodZone, DisclosureMold},
	"US-FL": {DisclosureRadon},
	"US-ME": {DisclosureBedBugs, DisclosureRadon},
	"US-NJ": {DisclosureFloodZone},
	"US-NY": {DisclosureBedBugs},
	"US-TX": {DisclosureFloodZone},
	"US-VA": {DisclosureMold},
	"US-WA": {DisclosureMold},
}

// usStates 其余已知美国州，仅适用联邦规则
var usStates = []string{
	"AK", "AL", "AR", "AZ", "CO", "CT", "DC", "DE", "GA", "HI", "IA", "ID", "IL", "IN",
	"KS", "KY", "LA", "MA", "MD", "MI", "MN", "MO", "MS", "MT", "NC", "ND", "NE", "NH",
	"NM", "NV", "OH", "OK", "OR", "PA", "RI", "SC", "SD", "TN", "UT", "VT", "WI", "WV", "WY",
}

// DisclosureResolver 按法域和物业条件展开披露项，无状态
type DisclosureResolver struct {
	rules map[string][]string
}

// NewDisclosureResolver 使用内置规则表创建解析器
func NewDisclosureResolver() *DisclosureResolver {
	rules := make(map[string][]string, len(jurisdictionRules)+len(usStates))
	for _, state := range usStates {
		rules["US-"+state] = nil
	}
	for code, ids := range jurisdictionRules {
		rules[code] = ids
	}
	return &DisclosureResolver{rules: rules}
}

// NormalizeJurisdiction 统一法域代码：大写、下划线转连字符、两位州码补 US-
func NormalizeJurisdiction(jurisdiction string) string {
	code := strings.ToUpper(strings.TrimSpace(jurisdiction))
	code = strings.ReplaceAll(code, "_", "-")
	if len(code) == 2 && code != "US" {
		code = "US-" + code
	}
	return code
}

// Resolve 在调用方勾选基础上并入法定披露项，输出按标识排序
func (r *DisclosureResolver) Resolve(jurisdiction string, c Customizations, builtBefore1978 bool) DisclosureSet {
	code := NormalizeJurisdiction(jurisdiction)
	set := DisclosureSet{Jurisdiction: code}

	sources := make(map[string]DisclosureSource)
	for _, id := range c.Disclosures.IDs() {
		sources[id] = DisclosureSourceCaller
	}

	mandated, ok := r.rules[code]
	set.Resolved = ok
	if !ok {
		set.Warnings = append(set.Warnings, Warning{
			Code:    WarningJurisdictionUnresolved,
			Field:   "jurisdiction",
			Message: "无法识别的法域 " + jurisdiction + "，仅使用调用方勾选的披露项",
		})
	}
	for _, id := range mandated {
		if _, exists := sources[id]; !exists {
			sources[id] = DisclosureSourceJurisdiction
		}
	}
	// 1978 年前建成的房屋含铅涂料披露为联邦强制，法域无法识别时同样适用
	if builtBefore1978 {
		if _, exists := sources[DisclosureLeadPaint]; !exists {
			sources[DisclosureLeadPaint] = DisclosureSourceJurisdiction
		}
	}

	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	set.Items = make([]ResolvedDisclosure, 0, len(ids))
	for _, id := range ids {
		text := disclosureCatalog[id]
		set.Items = append(set.Items, ResolvedDisclosure{
			ID:     id,
			Title:  text.title,
			Body:   text.body,
			Source: sources[id],
		})
	}
	return set
}
