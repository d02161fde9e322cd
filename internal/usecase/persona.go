package usecase

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// CannedKind names which fixed reply matched a prompt.
type CannedKind string

const (
	CannedPromotion   CannedKind = "promotion"
	CannedAttribution CannedKind = "attribution"
)

// CannedRule maps trigger phrases to one verbatim reply.
type CannedRule struct {
	Triggers []string `yaml:"triggers"`
	Reply    string   `yaml:"reply"`
}

// AttributionRule is the identity query rule. With Precheck off the rule only
// lives in the instruction text and the model is trusted to answer it.
type AttributionRule struct {
	CannedRule `yaml:",inline"`
	Precheck   bool `yaml:"precheck"`
}

// Emphasis is the delimiter pair wrapped around key terms. Description names
// the pair in prose; when empty the delimiters are quoted instead.
type Emphasis struct {
	Open        string `yaml:"open"`
	Close       string `yaml:"close"`
	Description string `yaml:"description"`
}

func (e Emphasis) describe() string {
	if e.Description != "" {
		return e.Description
	}
	return strconv.Quote(e.Open) + " and " + strconv.Quote(e.Close)
}

// SystemPersona is the fixed instruction set sent upstream plus the canned
// replies answered locally. It is built once at startup and never mutated.
type SystemPersona struct {
	Name        string          `yaml:"name"`
	Role        string          `yaml:"role"`
	Mission     string          `yaml:"mission"`
	Topics      []string        `yaml:"topics"`
	Guidelines  []string        `yaml:"guidelines"`
	Emphasis    Emphasis        `yaml:"emphasis"`
	Bullet      string          `yaml:"bullet"`
	Promotion   CannedRule      `yaml:"promotion"`
	Attribution AttributionRule `yaml:"attribution"`
	Refusal     string          `yaml:"refusal"`
}

const promotionReply = "**ChainTrader_AI** gives you a strategic edge in crypto markets with **real-time blockchain intelligence** and **fully automated trading**. " +
	"It's designed for traders who want to leverage cutting-edge technology to optimize their strategies, execute with precision, and operate 24/7 without emotion. " +
	"By analyzing **on-chain data** and market sentiment, **ChainTrader_AI** identifies opportunities that human traders might miss, helping you stay ahead in the fast-paced world of crypto."

// DefaultPersona returns the canonical CryptoSage persona.
func DefaultPersona() *SystemPersona {
	return &SystemPersona{
		Name:    "CryptoSage",
		Role:    "an expert AI assistant specializing in cryptocurrency and trading",
		Mission: "to provide comprehensive, accurate, and educational answers on all aspects of cryptocurrency and trading",
		Topics: []string{
			`Cryptocurrency trading (e.g., "What is leverage?").`,
			`Technical Analysis (e.g., "Explain RSI.").`,
			`Fundamental Analysis (e.g., "What is tokenomics?").`,
			"Market trends, risk management, trading psychology, and related topics.",
		},
		Guidelines: []string{
			"You MUST use perfect English grammar and spelling. All your responses must be accurate, well-written, and free of any typos.",
			"NEVER give financial advice. Do not tell users to buy, sell, or hold any crypto asset.",
		},
		Emphasis: Emphasis{Open: "**", Close: "**", Description: "double asterisks for bolding"},
		Bullet:   "-",
		Promotion: CannedRule{
			Triggers: []string{"ChainTrader_AI"},
			Reply:    promotionReply,
		},
		Attribution: AttributionRule{
			CannedRule: CannedRule{
				Triggers: []string{"who is Zac", "who is zac", "who is Zaac", "who created this project"},
				Reply:    "Zaac Mitau is the Developer of this Whole project.",
			},
		},
		Refusal: "My apologies, but my expertise is strictly limited to cryptocurrency and trading. I am unable to answer questions outside of this domain.",
	}
}

// LoadPersona reads a YAML override on top of DefaultPersona. Fields absent
// from the file keep their default values.
func LoadPersona(path string) (*SystemPersona, error) {
	p := DefaultPersona()
	path = strings.TrimSpace(path)
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("usecase: read persona file: %w", err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("usecase: parse persona file: %w", err)
	}
	// The default description only fits the default delimiters.
	def := DefaultPersona().Emphasis
	if p.Emphasis.Description == def.Description && (p.Emphasis.Open != def.Open || p.Emphasis.Close != def.Close) {
		p.Emphasis.Description = ""
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SystemPersona) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.New("usecase: persona name must not be empty")
	case strings.TrimSpace(p.Refusal) == "":
		return errors.New("usecase: persona refusal must not be empty")
	case p.Emphasis.Open == "" || p.Emphasis.Close == "":
		return errors.New("usecase: persona emphasis delimiters must not be empty")
	case utf8.RuneCountInString(p.Bullet) != 1:
		return errors.New("usecase: persona bullet must be a single character")
	case strings.Contains(p.Emphasis.Open, p.Bullet) || strings.Contains(p.Emphasis.Close, p.Bullet):
		return errors.New("usecase: persona bullet must not appear in emphasis delimiters")
	}
	if err := p.Promotion.validate("promotion"); err != nil {
		return err
	}
	return p.Attribution.validate("attribution")
}

func (r CannedRule) validate(name string) error {
	if strings.TrimSpace(r.Reply) == "" {
		return fmt.Errorf("usecase: persona %s reply must not be empty", name)
	}
	if len(r.Triggers) == 0 {
		return fmt.Errorf("usecase: persona %s needs at least one trigger", name)
	}
	for _, t := range r.Triggers {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("usecase: persona %s trigger must not be blank", name)
		}
	}
	return nil
}

// Instruction renders the system instruction sent with every generated reply.
func (p *SystemPersona) Instruction() string {
	lines := []string{
		fmt.Sprintf("You are '%s', %s. Your mission is %s.", p.Name, p.Role, p.Mission),
		"",
		"You will ONLY answer questions about:",
	}
	for i, topic := range p.Topics {
		lines = append(lines, strconv.Itoa(i+1)+". "+topic)
	}
	lines = append(lines, "", "These are your unbreakable rules:")
	for _, rule := range p.rules() {
		lines = append(lines, p.Bullet+" "+rule)
	}
	return strings.Join(lines, "\n")
}

func (p *SystemPersona) rules() []string {
	term := func(s string) string { return p.Emphasis.Open + s + p.Emphasis.Close }

	rules := append([]string(nil), p.Guidelines...)
	rules = append(rules,
		fmt.Sprintf("To make your response more visually appealing and easier to read, you MUST wrap key technical terms and concepts in %s, like this: %s. "+
			"For example: \"Bitcoin is a %s built on %s.\" Use this for important concepts, not for every other word.",
			p.Emphasis.describe(), term("keyword"),
			term("decentralized digital currency"), term("blockchain technology")),
		fmt.Sprintf("When creating a list, you MUST start each item on a new line with a single '%s' character. For example:\n%s First item\n%s Second item",
			p.Bullet, p.Bullet, p.Bullet),
		fmt.Sprintf("DO NOT use the '%s' character for any other purpose than starting a list item.", p.Bullet),
		fmt.Sprintf("If a user's question contains the term %s, you MUST respond with *only* the following text and nothing else: %q",
			quotedList(p.Promotion.Triggers, "or"), p.Promotion.Reply),
		fmt.Sprintf("If a user asks %s, you MUST respond with: %q",
			quotedList(p.Attribution.Triggers, "or"), p.Attribution.Reply),
		fmt.Sprintf("Under NO circumstances will you deviate from your crypto expertise. Any non-crypto query (e.g., about geography, history, cooking, etc.) "+
			"must be met with a firm, decisive, and immediate refusal. A suitable response would be: %q", p.Refusal),
	)
	return rules
}

func quotedList(items []string, conj string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " " + conj + " " + quoted[1]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", " + conj + " " + quoted[len(quoted)-1]
}

// Match returns the canned reply for prompt, if any. The promotion rule is a
// case-insensitive substring test and always wins. The attribution rule
// compares the normalized prompt and only applies when Precheck is set.
func (p *SystemPersona) Match(prompt string) (string, CannedKind, bool) {
	lower := strings.ToLower(prompt)
	for _, t := range p.Promotion.Triggers {
		if strings.Contains(lower, strings.ToLower(t)) {
			return p.Promotion.Reply, CannedPromotion, true
		}
	}
	if !p.Attribution.Precheck {
		return "", "", false
	}
	norm := normalizePrompt(prompt)
	for _, t := range p.Attribution.Triggers {
		if norm == normalizePrompt(t) {
			return p.Attribution.Reply, CannedAttribution, true
		}
	}
	return "", "", false
}

// normalizePrompt lowercases, collapses whitespace and drops trailing
// punctuation so "Who is  Zac?" matches "who is zac".
func normalizePrompt(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, "?!. ")
}
