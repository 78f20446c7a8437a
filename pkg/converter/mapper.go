// Package converter turns ledger transactions into Beancount transactions.
package converter

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const (
	defaultCurrency = "USD"
	defaultPrefix   = "Assets:Ledger"
	defaultExternal = "Equity:External"
)

// AccountMapping maps one ledger account to a Beancount account.
type AccountMapping struct {
	AccountNum string `yaml:"account_num"`
	Beancount  string `yaml:"beancount"`
}

// AccountMappingConfig is the yaml mapping file.
type AccountMappingConfig struct {
	Currency string `yaml:"currency"`
	// Prefix is prepended to unmapped account numbers.
	Prefix string `yaml:"prefix"`
	// External balances single-leg transactions, i.e. money entering or
	// leaving the ledger.
	External string           `yaml:"external"`
	Accounts []AccountMapping `yaml:"accounts"`
}

// Mapper maps ledger account numbers to Beancount account names.
type Mapper struct {
	config AccountMappingConfig
	byNum  map[string]string
}

// NewMapper loads a Mapper from a yaml file.
func NewMapper(configPath string) (*Mapper, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config AccountMappingConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return NewMapperFromConfig(config)
}

// NewMapperFromConfig builds a Mapper, filling defaults for missing fields.
func NewMapperFromConfig(config AccountMappingConfig) (*Mapper, error) {
	if config.Currency == "" {
		config.Currency = defaultCurrency
	}
	if config.Prefix == "" {
		config.Prefix = defaultPrefix
	}
	if config.External == "" {
		config.External = defaultExternal
	}

	m := &Mapper{config: config, byNum: make(map[string]string, len(config.Accounts))}
	for _, a := range config.Accounts {
		if a.AccountNum == "" || a.Beancount == "" {
			return nil, fmt.Errorf("account mapping needs account_num and beancount: %+v", a)
		}
		if _, dup := m.byNum[a.AccountNum]; dup {
			return nil, fmt.Errorf("account %s is mapped twice", a.AccountNum)
		}
		m.byNum[a.AccountNum] = a.Beancount
	}
	return m, nil
}

// Currency returns the commodity used for all postings.
func (m *Mapper) Currency() string {
	return m.config.Currency
}

// External returns the balancing account for single-leg transactions.
func (m *Mapper) External() string {
	return m.config.External
}

// BeancountAccount returns the mapped account, or {prefix}:{accountNum} with
// the number sanitized into a valid account component.
func (m *Mapper) BeancountAccount(accountNum string) string {
	if account, ok := m.byNum[accountNum]; ok {
		return account
	}
	return m.config.Prefix + ":" + sanitizeComponent(accountNum)
}

// sanitizeComponent makes s a valid Beancount account component: it must
// start with an uppercase letter or digit and contain only letters, digits
// and dashes.
func sanitizeComponent(s string) string {
	var sb strings.Builder
	for i, r := range s {
		switch {
		case i == 0 && unicode.IsLetter(r):
			sb.WriteRune(unicode.ToUpper(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	out := sb.String()
	if out == "" || out[0] == '-' {
		out = "X" + out
	}
	return out
}
