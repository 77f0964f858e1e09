package taxrule

import "errors"

var (
	ErrRuleSetNotFound   = errors.New("tax rule set not found")
	ErrRuleSetNameExists = errors.New("tax rule set name already exists")
)
