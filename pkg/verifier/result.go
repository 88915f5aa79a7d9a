package verifier

import "github.com/joeydtaylor/agegate/pkg/codes"

// Result is either a success carrying Claims or a failure carrying one code.
type Result struct {
	Claims  *Claims
	Tier    int
	Failure *codes.Failure
}

func (r Result) OK() bool { return r.Failure == nil && r.Claims != nil }

// Code returns the failure code, or "" on success.
func (r Result) Code() codes.Code {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Code
}

func success(c *Claims, tier int) Result { return Result{Claims: c, Tier: tier} }

func fail(c codes.Code) Result { return Result{Failure: codes.Fail(c)} }
