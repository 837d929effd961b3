package parser

// FormulaPolicy controls how the parser reacts to formula cells (§4.1 step 1).
type FormulaPolicy string

const (
	FormulaPolicyStrict FormulaPolicy = "strict"
	FormulaPolicyWarn   FormulaPolicy = "warn"
	FormulaPolicyAllow  FormulaPolicy = "allow"
)

// Options configures one parse invocation. Every threshold named in
// spec §4.1 has a field here with the documented default.
type Options struct {
	FormulaPolicy FormulaPolicy

	// SelectionThreshold is the minimum sheet score to be viable (default 0.5).
	SelectionThreshold float64
	// MinGap is the minimum score gap between the top two viable sheets
	// required to avoid an ambiguous sheet-selection result (default 0.15).
	MinGap float64

	// MaxHeaderScanRows bounds how many leading rows are scored as header
	// candidates (default 10).
	MaxHeaderScanRows int
	// HeaderScoreThreshold is the minimum score a row needs to be accepted
	// as the header row (default 0.3).
	HeaderScoreThreshold float64

	// MaxRows bounds how many rows (header included) are streamed per sheet before the
	// parser stops and emits ROW_LIMIT_EXCEEDED (default 10000).
	MaxRows int

	// ArithmeticToleranceAbs and ArithmeticToleranceRel bound the
	// qty*unitPrice vs lineTotal check: tolerance = max(abs, rel*|total|).
	ArithmeticToleranceAbs float64
	ArithmeticToleranceRel float64

	// ParserVersion is stamped onto CanonicalOrder.meta.parserVersion.
	ParserVersion string
}

// DefaultOptions returns the spec-documented defaults.
func DefaultOptions() Options {
	return Options{
		FormulaPolicy:          FormulaPolicyStrict,
		SelectionThreshold:     0.5,
		MinGap:                 0.15,
		MaxHeaderScanRows:      10,
		HeaderScoreThreshold:   0.3,
		MaxRows:                10000,
		ArithmeticToleranceAbs: 0.02,
		ArithmeticToleranceRel: 0.01,
		ParserVersion:          "1.0.0",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FormulaPolicy == "" {
		o.FormulaPolicy = d.FormulaPolicy
	}
	if o.SelectionThreshold == 0 {
		o.SelectionThreshold = d.SelectionThreshold
	}
	if o.MinGap == 0 {
		o.MinGap = d.MinGap
	}
	if o.MaxHeaderScanRows == 0 {
		o.MaxHeaderScanRows = d.MaxHeaderScanRows
	}
	if o.HeaderScoreThreshold == 0 {
		o.HeaderScoreThreshold = d.HeaderScoreThreshold
	}
	if o.MaxRows == 0 {
		o.MaxRows = d.MaxRows
	}
	if o.ArithmeticToleranceAbs == 0 {
		o.ArithmeticToleranceAbs = d.ArithmeticToleranceAbs
	}
	if o.ArithmeticToleranceRel == 0 {
		o.ArithmeticToleranceRel = d.ArithmeticToleranceRel
	}
	if o.ParserVersion == "" {
		o.ParserVersion = d.ParserVersion
	}
	return o
}
