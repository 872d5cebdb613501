package classifier

// Canonical department vocabulary, the routing targets everything
// downstream of the chain understands.
const (
	DeptSales           = "sales"
	DeptHR              = "hr"
	DeptFinance         = "finance"
	DeptITSupport       = "it_support"
	DeptLegal           = "legal"
	DeptMarketing       = "marketing"
	DeptCustomerService = "customer_service"
	DeptOperations      = "operations"
	DeptExecutive       = "executive"
	DeptGeneral         = "general"
	DeptSpam            = "spam"
)

// Departments lists the canonical routing targets.
var Departments = []string{
	DeptSales, DeptHR, DeptFinance, DeptITSupport, DeptLegal,
	DeptMarketing, DeptCustomerService, DeptOperations, DeptExecutive,
	DeptGeneral,
}

// Coarse content categories used by the LLM stage and the statistical
// baseline. These describe what a message *is*, not where it should go.
const (
	CategorySpam      = "spam"
	CategoryImportant = "important"
	CategoryPromotion = "promotion"
	CategorySocial    = "social"
	CategoryUpdates   = "updates"
)

// CoarseCategories lists the coarse vocabulary in a stable order.
var CoarseCategories = []string{
	CategorySpam, CategoryImportant, CategoryPromotion, CategorySocial, CategoryUpdates,
}

// coarseToDepartment maps the coarse vocabulary onto departments. The map
// is many-to-one and deliberately not invertible: both "important" and
// "updates" land in customer service.
var coarseToDepartment = map[string]string{
	CategorySpam:      DeptSpam,
	CategoryImportant: DeptCustomerService,
	CategoryPromotion: DeptSales,
	CategorySocial:    DeptGeneral,
	CategoryUpdates:   DeptCustomerService,
}

// stageVocabularies records, per stage name, how that stage's categories
// translate into departments. The department stage already speaks the
// canonical vocabulary, so its table is the identity.
var stageVocabularies = map[string]map[string]string{
	StageDepartment: nil, // identity
	StageBaseline:   coarseToDepartment,
	"openai":        coarseToDepartment,
	"bedrock":       coarseToDepartment,
	"gemini":        coarseToDepartment,
}

// TranslateDepartment maps a stage-specific category to its canonical
// department. Unmapped categories fall back to the general department.
func TranslateDepartment(stage, category string) string {
	table, ok := stageVocabularies[stage]
	if !ok || table == nil {
		// Identity translation for stages speaking department vocabulary.
		for _, d := range Departments {
			if d == category {
				return d
			}
		}
		if category == DeptSpam {
			return DeptSpam
		}
		return DeptGeneral
	}
	if dept, ok := table[category]; ok {
		return dept
	}
	return DeptGeneral
}

// departmentKeywords drives the domain-tuned stage. A hit boosts the
// department's score; the lists are deliberately lowercase because matching
// runs over normalized text.
var departmentKeywords = map[string][]string{
	DeptSales: {
		"quote", "pricing", "demo", "purchase", "buy", "deal", "discount",
		"proposal", "sales", "order", "subscription", "upgrade", "renew",
		"price list", "trial", "sale",
	},
	DeptHR: {
		"job", "resume", "cv", "application", "interview", "hiring",
		"recruit", "salary", "benefits", "vacation", "payroll",
		"onboarding", "resignation", "promotion policy",
	},
	DeptFinance: {
		"invoice", "payment", "bill", "receipt", "expense", "reimburse",
		"budget", "accounting", "tax", "audit", "refund", "wire transfer",
		"statement", "fiscal",
	},
	DeptITSupport: {
		"password", "reset", "login", "access", "server", "software",
		"hardware", "network", "vpn", "outage", "down", "crash", "error",
		"bug", "not working", "broken", "help desk",
	},
	DeptLegal: {
		"contract", "agreement", "nda", "legal", "lawyer", "attorney",
		"lawsuit", "compliance", "gdpr", "trademark", "copyright",
		"patent", "litigation", "legal hold",
	},
	DeptMarketing: {
		"campaign", "marketing", "advertising", "brand", "press release",
		"social media", "newsletter signup", "webinar", "seo",
		"lead generation",
	},
	DeptCustomerService: {
		"complaint", "unhappy", "dissatisfied", "frustrated", "issue with",
		"problem with", "return", "exchange", "defective", "damaged",
		"late delivery", "poor service", "feedback", "support ticket",
	},
	DeptOperations: {
		"shipping", "delivery", "tracking", "warehouse", "inventory",
		"supply chain", "supplier", "vendor", "procurement", "logistics",
		"freight", "customs",
	},
	DeptExecutive: {
		"ceo", "cfo", "cto", "board", "director", "investor",
		"shareholder", "merger", "acquisition", "quarterly report",
		"earnings", "board meeting", "executive summary",
	},
}
