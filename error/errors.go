package error

import (
	"encoding/json"
)

type RingError struct {
	Msg       string `json:"message"`
	ErrorCode int    `json:"code"`
}

func (ringError RingError) Error() string {
	return ringError.Msg
}

func (ringError RingError) Code() int {
	return ringError.ErrorCode
}

func (ringError RingError) JSON() []byte {
	json, _ := json.Marshal(ringError)

	return json
}

// Decode parses a RingError from a response body produced by JSON(). It
// returns false if the body does not describe a known ring error.
func Decode(body []byte) (RingError, bool) {
	var ringError RingError

	if err := json.Unmarshal(body, &ringError); err != nil {
		return RingError{}, false
	}

	for _, known := range knownErrors {
		if known.ErrorCode == ringError.ErrorCode {
			return known, true
		}
	}

	return RingError{}, false
}

const (
	eCAPACITY_EXCEEDED = iota
	eRING_EMPTY
	eREQUEST_UNDELIVERED
	eORPHANED_TOKEN
	eNO_SUCH_NODE
	eNOT_HOLDER
	eSTALE_HANDOFF
	eNOT_IN_CRITICAL_SECTION
	eSTOPPED
	eREAD_BODY
	eINVALID_NODE_ID
	eSTORAGE
)

var (
	ECapacityExceeded     = RingError{"The ring is already at its maximum size", eCAPACITY_EXCEEDED}
	ERingEmpty            = RingError{"The ring has no members", eRING_EMPTY}
	ERequestUndelivered   = RingError{"The request exceeded its hop bound without reaching the token holder", eREQUEST_UNDELIVERED}
	EOrphanedToken        = RingError{"The token holder was removed before completing a hand-off", eORPHANED_TOKEN}
	ENoSuchNode           = RingError{"The specified node is not a member of the ring", eNO_SUCH_NODE}
	ENotHolder            = RingError{"The node does not hold the token", eNOT_HOLDER}
	EStaleHandOff         = RingError{"The token moved before the hand-off could be committed", eSTALE_HANDOFF}
	ENotInCriticalSection = RingError{"The node is not in the critical section", eNOT_IN_CRITICAL_SECTION}
	EStopped              = RingError{"The ring has been stopped", eSTOPPED}
	EReadBody             = RingError{"Unable to read the request body", eREAD_BODY}
	EInvalidNodeID        = RingError{"The node ID is not a base 10 encoded 64 bit number", eINVALID_NODE_ID}
	EStorage              = RingError{"The storage driver experienced an error", eSTORAGE}
)

var knownErrors = []RingError{
	ECapacityExceeded,
	ERingEmpty,
	ERequestUndelivered,
	EOrphanedToken,
	ENoSuchNode,
	ENotHolder,
	EStaleHandOff,
	ENotInCriticalSection,
	EStopped,
	EReadBody,
	EInvalidNodeID,
	EStorage,
}
