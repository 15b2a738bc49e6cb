package fees

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Charge modes.
const (
	ModeBoth = "both"
	ModeBuy  = "buy"
	ModeSell = "sell"
	ModeNone = "none"
)

// Rule is one fee line: proportional rate with a minimum charge, applied on
// the sides selected by Mode.
type Rule struct {
	Rate   float64 `json:"rate"`
	MinFee float64 `json:"min_fee"`
	Mode   string  `json:"mode"`
}

// ProductRules groups the three fee kinds charged on one product class.
type ProductRules struct {
	Commission Rule `json:"commission"`
	StampDuty  Rule `json:"stamp_duty"`
	OtherFees  Rule `json:"other_fees"`
}

// Document is the full persisted rule table: market -> product -> rules.
type Document map[string]map[string]ProductRules

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "type": "object",
    "minProperties": 1,
    "additionalProperties": {
      "type": "object",
      "required": ["commission", "stamp_duty", "other_fees"],
      "properties": {
        "commission": {"$ref": "#/$defs/rule"},
        "stamp_duty": {"$ref": "#/$defs/rule"},
        "other_fees": {"$ref": "#/$defs/rule"}
      }
    }
  },
  "$defs": {
    "rule": {
      "type": "object",
      "required": ["rate", "min_fee", "mode"],
      "properties": {
        "rate": {"type": "number", "minimum": 0},
        "min_fee": {"type": "number", "minimum": 0},
        "mode": {"enum": ["both", "buy", "sell", "none"]}
      }
    }
  }
}`

var docSchema = jsonschema.MustCompileString("fees.schema.json", schemaJSON)

// ValidateDocument checks a rule document against the schema and the
// structural requirements the engine relies on (an SH/STOCK fallback path).
func ValidateDocument(doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode fee document: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode fee document: %w", err)
	}
	if err := docSchema.Validate(generic); err != nil {
		return fmt.Errorf("fee document schema: %w", err)
	}
	sh, ok := doc[MarketSH]
	if !ok {
		return fmt.Errorf("fee document must define market %s (fallback path)", MarketSH)
	}
	if _, ok := sh[ProductStock]; !ok {
		return fmt.Errorf("fee document must define %s/%s (fallback path)", MarketSH, ProductStock)
	}
	return nil
}

// DefaultDocument is the rule table written out when no configuration exists
// yet: commission 0.01% min 5 both sides, stamp duty 0.05% sell only,
// transfer fee 0.001% both sides; ETFs and convertibles are duty-exempt.
func DefaultDocument() Document {
	stock := ProductRules{
		Commission: Rule{Rate: 0.0001, MinFee: 5, Mode: ModeBoth},
		StampDuty:  Rule{Rate: 0.0005, MinFee: 0, Mode: ModeSell},
		OtherFees:  Rule{Rate: 0.00001, MinFee: 0, Mode: ModeBoth},
	}
	etf := ProductRules{
		Commission: Rule{Rate: 0.0001, MinFee: 5, Mode: ModeBoth},
		StampDuty:  Rule{Mode: ModeNone},
		OtherFees:  Rule{Mode: ModeNone},
	}
	bond := ProductRules{
		Commission: Rule{Rate: 0.00004, MinFee: 0, Mode: ModeBoth},
		StampDuty:  Rule{Mode: ModeNone},
		OtherFees:  Rule{Mode: ModeNone},
	}
	bjStock := stock
	bjStock.OtherFees = Rule{Mode: ModeNone}
	return Document{
		MarketSH: {ProductStock: stock, ProductETF: etf, ProductBond: bond},
		MarketSZ: {ProductStock: stock, ProductETF: etf, ProductBond: bond},
		MarketBJ: {ProductStock: bjStock},
	}
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for market, products := range doc {
		cp := make(map[string]ProductRules, len(products))
		for product, rules := range products {
			cp[product] = rules
		}
		out[market] = cp
	}
	return out
}
