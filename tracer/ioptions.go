package tracer

// ioptionFlags is the decoded form of a Support packet's IOptions blob.
// Only fields relevant to this implementation are populated; a nil field
// means the configured Unit doesn't carry that option at all.
type ioptionFlags struct {
	implicitReturn    *bool
	implicitException *bool
	fullAddress       *bool
	jumpTargetCache   *bool
	branchPrediction  *bool
	sijump            *bool
}

// decodeIOptions interprets a Support packet's raw IOptions bitfield
// according to the bit layout of the named trace-encoder Unit
// ("reference" or "pulp"). Unknown unit names decode to an empty
// ioptionFlags, under which processSupport simply applies nothing.
func decodeIOptions(unitName string, raw uint64) ioptionFlags {
	bit := func(i uint) bool { return raw&(1<<i) != 0 }

	switch unitName {
	case "reference":
		ir := bit(0)
		ie := bit(1)
		fa := bit(2)
		jtc := bit(3)
		bp := bit(4)
		return ioptionFlags{
			implicitReturn:    &ir,
			implicitException: &ie,
			fullAddress:       &fa,
			jumpTargetCache:   &jtc,
			branchPrediction:  &bp,
		}
	case "pulp":
		jtc := bit(0)
		bp := bit(1)
		ir := bit(2)
		sij := bit(3)
		ie := bit(4)
		delta := bit(6)
		fa := !delta
		return ioptionFlags{
			jumpTargetCache:   &jtc,
			branchPrediction:  &bp,
			implicitReturn:    &ir,
			sijump:            &sij,
			implicitException: &ie,
			fullAddress:       &fa,
		}
	default:
		return ioptionFlags{}
	}
}
