package tokenmanager

type InstructionType uint8

const (
	Unknown InstructionType = iota

	InstructionTypeCreateTokenManager
	InstructionTypeMintTokenSupply
)

func putInstructionType(dst []byte, v InstructionType, offset *int) {
	dst[*offset] = uint8(v)
	*offset += 1
}

func getInstructionType(src []byte, dst *InstructionType, offset *int) {
	*dst = InstructionType(src[*offset])
	*offset += 1
}

// GetInstructionType returns the type of a token manager instruction.
func GetInstructionType(data []byte) (InstructionType, error) {
	if len(data) == 0 {
		return Unknown, ErrInvalidInstructionData
	}

	var offset int
	var t InstructionType
	getInstructionType(data, &t, &offset)
	return t, nil
}
