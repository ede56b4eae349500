package crossval

// Error is an error with no information beyond its message. The package-level
// sentinels below are all of this type; compare with errors.Cause (or
// errors.Is) after unwrapping the context added by the routines.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

var (
	ErrInvalidFoldCount            = Error{"crossval: fold count out of range"}
	ErrInsufficientSamplesPerClass = Error{"crossval: class has fewer samples than folds"}
	ErrInvalidIncrementCount       = Error{"crossval: increments do not evenly divide the training pool"}
	ErrInvalidValidationFraction   = Error{"crossval: validation fraction must be in [0, 1)"}
	ErrScoreOutOfRange             = Error{"crossval: score not in [0, 1]"}
	ErrNoResults                   = Error{"crossval: no sweep results"}
	ErrDimensionMismatch           = Error{"crossval: dimension mismatch"}
	ErrLabelOutOfRange             = Error{"crossval: label outside the label alphabet"}
	ErrPanic                       = Error{"crossval: panic in trainer"}
)

var (
	ErrMissingSetting = Error{"crossval: candidate has no such setting"}
	ErrSettingType    = Error{"crossval: candidate setting has the wrong type"}
)
