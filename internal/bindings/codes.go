package bindings

import (
	"fmt"
	"sync"
)

// Code is a native error code in the NSPR/NSS numbering. OK (zero) means no
// error. Codes are returned next to the value they describe instead of being
// left in a thread-local slot, so they can never be observed by another call.
type Code int32

const OK Code = 0

const (
	nsprErrorBase Code = -6000
	secErrorBase  Code = -0x2000
)

// NSPR codes.
const (
	PR_OUT_OF_MEMORY_ERROR    = nsprErrorBase + 0
	PR_UNKNOWN_ERROR          = nsprErrorBase + 6
	PR_NOT_IMPLEMENTED_ERROR  = nsprErrorBase + 8
	PR_INVALID_ARGUMENT_ERROR = nsprErrorBase + 13
	PR_LOAD_LIBRARY_ERROR     = nsprErrorBase + 23
	PR_FIND_SYMBOL_ERROR      = nsprErrorBase + 25
	PR_INVALID_STATE_ERROR    = nsprErrorBase + 69
	PR_CALL_ONCE_ERROR        = nsprErrorBase + 75
)

// NSS security library codes.
const (
	SEC_ERROR_IO                     = secErrorBase + 0
	SEC_ERROR_LIBRARY_FAILURE        = secErrorBase + 1
	SEC_ERROR_BAD_DATA               = secErrorBase + 2
	SEC_ERROR_OUTPUT_LEN             = secErrorBase + 3
	SEC_ERROR_INPUT_LEN              = secErrorBase + 4
	SEC_ERROR_INVALID_ARGS           = secErrorBase + 5
	SEC_ERROR_INVALID_ALGORITHM      = secErrorBase + 6
	SEC_ERROR_BAD_DER                = secErrorBase + 9
	SEC_ERROR_BAD_KEY                = secErrorBase + 14
	SEC_ERROR_BAD_PASSWORD           = secErrorBase + 15
	SEC_ERROR_NO_MEMORY              = secErrorBase + 19
	SEC_ERROR_NO_KEY                 = secErrorBase + 26
	SEC_ERROR_INVALID_KEY            = secErrorBase + 40
	SEC_ERROR_UNSUPPORTED_KEYALG     = secErrorBase + 48
	SEC_ERROR_NO_MODULE              = secErrorBase + 64
	SEC_ERROR_NO_TOKEN               = secErrorBase + 65
	SEC_ERROR_READ_ONLY              = secErrorBase + 66
	SEC_ERROR_NO_SLOT_SELECTED       = secErrorBase + 67
	SEC_ERROR_KEYGEN_FAIL            = secErrorBase + 100
	SEC_ERROR_BAD_TEMPLATE           = secErrorBase + 136
	SEC_ERROR_BUSY                   = secErrorBase + 139
	SEC_ERROR_EXTRA_INPUT            = secErrorBase + 140
	SEC_ERROR_INCOMPATIBLE_PKCS11    = secErrorBase + 151
	SEC_ERROR_NOT_INITIALIZED        = secErrorBase + 154
	SEC_ERROR_TOKEN_NOT_LOGGED_IN    = secErrorBase + 155
	SEC_ERROR_PKCS11_GENERAL_ERROR   = secErrorBase + 167
	SEC_ERROR_PKCS11_FUNCTION_FAILED = secErrorBase + 168
	SEC_ERROR_PKCS11_DEVICE_ERROR    = secErrorBase + 169
)

type codeInfo struct {
	name string
	text string
}

var (
	codeTableOnce sync.Once
	codeTable     map[Code]codeInfo
)

func loadCodeTable() {
	codeTable = map[Code]codeInfo{
		PR_OUT_OF_MEMORY_ERROR:    {"PR_OUT_OF_MEMORY_ERROR", "Memory allocation attempt failed."},
		PR_NOT_IMPLEMENTED_ERROR:  {"PR_NOT_IMPLEMENTED_ERROR", "Operation not implemented."},
		PR_UNKNOWN_ERROR:          {"PR_UNKNOWN_ERROR", "Unknown error has occurred."},
		PR_INVALID_ARGUMENT_ERROR: {"PR_INVALID_ARGUMENT_ERROR", "Invalid function argument."},
		PR_LOAD_LIBRARY_ERROR:     {"PR_LOAD_LIBRARY_ERROR", "Failure to load dynamic library."},
		PR_FIND_SYMBOL_ERROR:      {"PR_FIND_SYMBOL_ERROR", "Symbol not found in any of the loaded dynamic libraries."},
		PR_INVALID_STATE_ERROR:    {"PR_INVALID_STATE_ERROR", "Object state improper for request."},
		PR_CALL_ONCE_ERROR:        {"PR_CALL_ONCE_ERROR", "The one-time function was previously called and failed."},

		SEC_ERROR_IO:                     {"SEC_ERROR_IO", "An I/O error occurred during security authorization."},
		SEC_ERROR_LIBRARY_FAILURE:        {"SEC_ERROR_LIBRARY_FAILURE", "security library failure."},
		SEC_ERROR_BAD_DATA:               {"SEC_ERROR_BAD_DATA", "security library: received bad data."},
		SEC_ERROR_OUTPUT_LEN:             {"SEC_ERROR_OUTPUT_LEN", "security library: output length error."},
		SEC_ERROR_INPUT_LEN:              {"SEC_ERROR_INPUT_LEN", "security library has experienced an input length error."},
		SEC_ERROR_INVALID_ARGS:           {"SEC_ERROR_INVALID_ARGS", "security library: invalid arguments."},
		SEC_ERROR_INVALID_ALGORITHM:      {"SEC_ERROR_INVALID_ALGORITHM", "security library: invalid algorithm."},
		SEC_ERROR_BAD_DER:                {"SEC_ERROR_BAD_DER", "security library: improperly formatted DER-encoded message."},
		SEC_ERROR_BAD_KEY:                {"SEC_ERROR_BAD_KEY", "Peer's public key is invalid."},
		SEC_ERROR_BAD_PASSWORD:           {"SEC_ERROR_BAD_PASSWORD", "The security password entered is incorrect."},
		SEC_ERROR_NO_MEMORY:              {"SEC_ERROR_NO_MEMORY", "security library: memory allocation failure."},
		SEC_ERROR_NO_KEY:                 {"SEC_ERROR_NO_KEY", "The private key for this certificate cannot be found in key database."},
		SEC_ERROR_INVALID_KEY:            {"SEC_ERROR_INVALID_KEY", "The key does not support the requested operation."},
		SEC_ERROR_UNSUPPORTED_KEYALG:     {"SEC_ERROR_UNSUPPORTED_KEYALG", "Unsupported or unknown key algorithm."},
		SEC_ERROR_NO_MODULE:              {"SEC_ERROR_NO_MODULE", "security library: no security module can perform the requested operation."},
		SEC_ERROR_NO_TOKEN:               {"SEC_ERROR_NO_TOKEN", "The security card or token does not exist, needs to be initialized, or has been removed."},
		SEC_ERROR_READ_ONLY:              {"SEC_ERROR_READ_ONLY", "security library: read-only database."},
		SEC_ERROR_NO_SLOT_SELECTED:       {"SEC_ERROR_NO_SLOT_SELECTED", "No slot or token was selected."},
		SEC_ERROR_KEYGEN_FAIL:            {"SEC_ERROR_KEYGEN_FAIL", "Failure to generate key pair."},
		SEC_ERROR_BAD_TEMPLATE:           {"SEC_ERROR_BAD_TEMPLATE", "Invalid object template."},
		SEC_ERROR_BUSY:                   {"SEC_ERROR_BUSY", "NSS could not shutdown. Objects are still in use."},
		SEC_ERROR_EXTRA_INPUT:            {"SEC_ERROR_EXTRA_INPUT", "DER-encoded message contained extra unused data."},
		SEC_ERROR_INCOMPATIBLE_PKCS11:    {"SEC_ERROR_INCOMPATIBLE_PKCS11", "The PKCS #11 token does not conform to the PKCS #11 specification."},
		SEC_ERROR_NOT_INITIALIZED:        {"SEC_ERROR_NOT_INITIALIZED", "NSS is not initialized."},
		SEC_ERROR_TOKEN_NOT_LOGGED_IN:    {"SEC_ERROR_TOKEN_NOT_LOGGED_IN", "The operation failed because the PKCS#11 token is not logged in."},
		SEC_ERROR_PKCS11_GENERAL_ERROR:   {"SEC_ERROR_PKCS11_GENERAL_ERROR", "A PKCS #11 module returned CKR_GENERAL_ERROR, indicating that an unrecoverable error has occurred."},
		SEC_ERROR_PKCS11_FUNCTION_FAILED: {"SEC_ERROR_PKCS11_FUNCTION_FAILED", "A PKCS #11 module returned CKR_FUNCTION_FAILED, indicating that the requested function could not be performed."},
		SEC_ERROR_PKCS11_DEVICE_ERROR:    {"SEC_ERROR_PKCS11_DEVICE_ERROR", "A PKCS #11 module returned CKR_DEVICE_ERROR, indicating that a problem has occurred with the token or slot."},
	}
}

func lookupCode(c Code) (codeInfo, bool) {
	codeTableOnce.Do(loadCodeTable)
	info, ok := codeTable[c]
	return info, ok
}

// String returns the symbolic name of the code, or its number when unknown.
func (c Code) String() string {
	if c == OK {
		return "OK"
	}
	if info, ok := lookupCode(c); ok {
		return info.name
	}
	return fmt.Sprintf("code(%d)", int32(c))
}

// ErrorText resolves the human readable message for a code. Resolution is
// deferred until an error is actually formatted.
func ErrorText(c Code) string {
	if c == OK {
		return "no error"
	}
	if info, ok := lookupCode(c); ok {
		return info.text
	}
	return fmt.Sprintf("unknown native error %d", int32(c))
}
