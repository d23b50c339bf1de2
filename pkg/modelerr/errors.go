// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package modelerr defines the error taxonomy of the configuration model.
//
// Every failure raised by the registry, the rule handlers and the model graph
// is an *Error carrying a kind (what went wrong) and a class (how fatal it is).
// Both can be tested with errors.Is.
package modelerr

import (
	"errors"
	"strings"
)

// Error classes.
var (
	// ErrConfiguration marks authoring mistakes in rule declarations.
	// Detected at rule registration, aborts the configuration step.
	ErrConfiguration = errors.New("configuration error")

	// ErrRegistrationConflict marks factory/registration conflicts.
	ErrRegistrationConflict = errors.New("registration conflict")

	// ErrCreation marks failures of a single creation request.
	// Fatal to that request only.
	ErrCreation = errors.New("creation error")

	// ErrGraphIntegrity marks failures detected while realizing the model graph.
	ErrGraphIntegrity = errors.New("graph integrity error")
)

// Error kinds.
var (
	ErrInvalidRuleShape = errors.New("invalid rule shape")
	ErrInvalidModelType = errors.New("invalid model type")
	ErrInvalidManifest  = errors.New("invalid manifest")

	ErrDuplicateFactory      = errors.New("duplicate factory")
	ErrNotASubtype           = errors.New("not a subtype")
	ErrRegistryFrozen        = errors.New("registry frozen")
	ErrDuplicateRegistration = errors.New("duplicate registration")

	ErrAmbiguousCreation    = errors.New("ambiguous creation")
	ErrUnknownCreatableType = errors.New("unknown creatable type")
	ErrServiceMissing       = errors.New("service missing")
	ErrInstantiationFailed  = errors.New("instantiation failed")

	ErrCycleDetected       = errors.New("cycle detected")
	ErrTooLateToMutate     = errors.New("too late to mutate")
	ErrUnknownModel        = errors.New("unknown model element")
	ErrAmbiguousReference  = errors.New("ambiguous model reference")
	ErrRuleExecutionFailed = errors.New("rule execution failed")
)

const (
	codeInvalidRuleShape     = "INVALID_RULE_SHAPE"
	codeInvalidModelType     = "INVALID_MODEL_TYPE"
	codeInvalidManifest      = "INVALID_MANIFEST"
	codeDuplicateFactory     = "DUPLICATE_FACTORY"
	codeNotASubtype          = "NOT_A_SUBTYPE"
	codeRegistryFrozen       = "REGISTRY_FROZEN"
	codeDuplicateRegistration = "DUPLICATE_REGISTRATION"
	codeAmbiguousCreation    = "AMBIGUOUS_CREATION"
	codeUnknownCreatableType = "UNKNOWN_CREATABLE_TYPE"
	codeServiceMissing       = "SERVICE_MISSING"
	codeInstantiationFailed  = "INSTANTIATION_FAILED"
	codeCycleDetected        = "CYCLE_DETECTED"
	codeTooLateToMutate      = "TOO_LATE_TO_MUTATE"
	codeUnknownModel         = "UNKNOWN_MODEL"
	codeAmbiguousReference   = "AMBIGUOUS_REFERENCE"
	codeRuleExecutionFailed  = "RULE_EXECUTION_FAILED"
)

type kindInfo struct {
	class error
	code  string
}

var kinds = map[error]kindInfo{
	ErrInvalidRuleShape:      {ErrConfiguration, codeInvalidRuleShape},
	ErrInvalidModelType:      {ErrConfiguration, codeInvalidModelType},
	ErrInvalidManifest:       {ErrConfiguration, codeInvalidManifest},
	ErrDuplicateFactory:      {ErrRegistrationConflict, codeDuplicateFactory},
	ErrNotASubtype:           {ErrRegistrationConflict, codeNotASubtype},
	ErrRegistryFrozen:        {ErrRegistrationConflict, codeRegistryFrozen},
	ErrDuplicateRegistration: {ErrRegistrationConflict, codeDuplicateRegistration},
	ErrAmbiguousCreation:     {ErrCreation, codeAmbiguousCreation},
	ErrUnknownCreatableType:  {ErrCreation, codeUnknownCreatableType},
	ErrServiceMissing:        {ErrCreation, codeServiceMissing},
	ErrInstantiationFailed:   {ErrCreation, codeInstantiationFailed},
	ErrCycleDetected:         {ErrGraphIntegrity, codeCycleDetected},
	ErrTooLateToMutate:       {ErrGraphIntegrity, codeTooLateToMutate},
	ErrUnknownModel:          {ErrGraphIntegrity, codeUnknownModel},
	ErrAmbiguousReference:    {ErrGraphIntegrity, codeAmbiguousReference},
	ErrRuleExecutionFailed:   {ErrGraphIntegrity, codeRuleExecutionFailed},
}

// Error is a classified model failure.
type Error struct {
	Kind    error
	Message string
	// Origin is the human readable declaration site, when one is known.
	Origin string
	// Chain lists the subjects/inputs involved, outermost first.
	Chain []string
	Cause error
}

// New creates an error of the given kind with an exact message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind caused by cause.
func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithOrigin records the declaration site and returns e.
func (e *Error) WithOrigin(origin string) *Error {
	e.Origin = origin
	return e
}

// WithChain records the references involved and returns e.
func (e *Error) WithChain(chain ...string) *Error {
	e.Chain = append([]string(nil), chain...)
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Chain) > 0 {
		msg += " (" + strings.Join(e.Chain, " -> ") + ")"
	}
	if e.Cause != nil {
		// a full sentence is followed by the cause as another sentence
		if strings.HasSuffix(msg, ".") {
			msg += " " + e.Cause.Error()
		} else {
			msg += ": " + e.Cause.Error()
		}
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches the kind and the class sentinels.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	info, ok := kinds[e.Kind]
	return ok && target == info.class
}

// Code returns the stable error code.
func (e *Error) Code() string {
	return kinds[e.Kind].code
}

// Class returns the class sentinel of the error kind.
func (e *Error) Class() error {
	return kinds[e.Kind].class
}

// ErrorCode resolves err to the code of the outermost classified error in
// its chain.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var me *Error
	if errors.As(err, &me) {
		return me.Code()
	}
	return "INTERNAL"
}

// ClassOf returns the class sentinel of err, or nil if it is not classified.
// Like ErrorCode it is decided by the outermost classified error.
func ClassOf(err error) error {
	var me *Error
	if errors.As(err, &me) {
		return me.Class()
	}
	for _, class := range []error{ErrConfiguration, ErrRegistrationConflict, ErrCreation, ErrGraphIntegrity} {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}

// ExitCode maps errors to CLI exit codes.
//   - 0: success
//   - 1: unclassified error
//   - 2: configuration error (fix the declaration)
//   - 3: registration conflict
//   - 4: creation error
//   - 5: graph integrity error
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch ClassOf(err) {
	case ErrConfiguration:
		return 2
	case ErrRegistrationConflict:
		return 3
	case ErrCreation:
		return 4
	case ErrGraphIntegrity:
		return 5
	default:
		return 1
	}
}

// Suggestions provides human readable guidance for CLI usage.
func Suggestions(err error) []string {
	switch ErrorCode(err) {
	case codeInvalidRuleShape:
		return []string{
			"Declare the rule with exactly one builder parameter and no return value",
			"Give the builder parameter a concrete type argument (no wildcards)",
		}
	case codeInvalidModelType:
		return []string{
			"Make the declared type extend the base interface of the model",
			"Use a concrete implementation that extends the base implementation",
		}
	case codeInvalidManifest:
		return []string{"Run kiln model validate on the manifest and fix the reported fields"}
	case codeDuplicateFactory, codeDuplicateRegistration:
		return []string{"Remove the second registration or register a different type"}
	case codeNotASubtype:
		return []string{"Register factories only for subtypes of the container element type"}
	case codeRegistryFrozen:
		return []string{"Move the registration into the configuration phase, before freeze"}
	case codeAmbiguousCreation, codeUnknownCreatableType:
		return []string{"Specify one of the known types listed in the message"}
	case codeCycleDetected:
		return []string{"Remove the rule input that refers back to its own subject"}
	case codeTooLateToMutate:
		return []string{"Register the rule before the subject is first used"}
	default:
		return nil
	}
}
