package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDomainListMustBeStringOrList = errors.New("config: home_domains must be a string or a list of strings")
	ErrDomainListEmpty              = errors.New("config: at least one home domain must be configured")
	ErrDomainInvalid                = errors.New("config: home domain is invalid")
)

// DomainList is a list of home domains. In YAML it can be written either as a
// single string or as a list of strings.
type DomainList []string

func (dl *DomainList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return ErrDomainListMustBeStringOrList
	}

	switch string(data[0]) {
	case `"`: // string
		var val string
		if err := json.Unmarshal(data, &val); err != nil {
			return err
		}
		*dl = DomainList{val}

		return nil
	case "[": // list
		var val []string
		if err := json.Unmarshal(data, &val); err != nil {
			return err
		}
		*dl = val

		return nil
	}

	return ErrDomainListMustBeStringOrList
}

func (dl DomainList) Valid() error {
	if len(dl) == 0 {
		return ErrDomainListEmpty
	}

	var errs []error
	for _, domain := range dl {
		if strings.TrimSpace(domain) == "" || strings.ContainsAny(domain, " /\t\n") {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDomainInvalid, domain))
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}
