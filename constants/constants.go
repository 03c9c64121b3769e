// Common vars and constants, shared by the swordv3 client, workers
// and the deposit service.
package constants

// SWORDv3 vocabulary. The JSON-LD context URL and the type tag are
// written into every metadata document we send.
const (
	SwordContextURL    = "https://swordapp.github.io/swordv3/swordv3.jsonld"
	MetadataType       = "Metadata"
	StateURIPrefix     = "http://purl.org/net/sword/3.0/state/"
	DepositDateFormat  = "2006-01-02 15:04:05"
	AttachmentFileName = "document.pdf"
)

// Canonical SWORD states. These are the trailing segment of the
// state URIs a server declares in a status document, and they are
// the values we persist in DepositRecord.State.
const (
	StateAccepted   = "accepted"
	StateInProgress = "inProgress"
	StateInWorkflow = "inWorkflow"
	StateIngested   = "ingested"
	StateRejected   = "rejected"
	StateDeleted    = "deleted"
	StateUnknown    = ""
)

// SwordStates lists the canonical states. A status document that
// declares more than one state URI resolves to the first one it
// declares that names a state in this list.
var SwordStates []string = []string{
	StateAccepted,
	StateInProgress,
	StateInWorkflow,
	StateIngested,
	StateRejected,
	StateDeleted,
}

// SuccessStates are states that count as "deposited" in summaries.
var SuccessStates []string = []string{
	StateAccepted,
	StateInProgress,
	StateInWorkflow,
	StateIngested,
}

// InProgressStates are non-terminal. Deposits in these states are
// picked up by swordv3_check_in_progress and polled again.
var InProgressStates []string = []string{
	StateAccepted,
	StateInProgress,
	StateInWorkflow,
}

// Authentication modes a SWORDv3 server may advertise.
const (
	AuthBasic  = "Basic"
	AuthAPIKey = "APIKey"
	AuthOAuth  = "OAuth"
	AuthDigest = "Digest"
)

var AuthModes []string = []string{
	AuthBasic,
	AuthAPIKey,
	AuthOAuth,
	AuthDigest,
}

// IANA digest formats understood by the digest negotiator.
const (
	DigestSHA512  = "SHA-512"
	DigestSHA256  = "SHA-256"
	DigestSHA1    = "SHA"
	DigestMD5     = "MD5"
	DigestADLER32 = "ADLER32"
	DigestCRC32C  = "CRC32C"
)

// DefaultDigestAlgorithms are the algorithms we compute when the
// config file does not list any.
var DefaultDigestAlgorithms []string = []string{
	DigestSHA512,
	DigestSHA256,
	DigestSHA1,
	DigestMD5,
}

// The only galley type we deposit.
const MimeTypePDF = "application/pdf"

// PublicationStatusPublished matches the host application's
// published status code.
const PublicationStatusPublished = 3

// NSQ topics.
const (
	TopicDeposit  = "swordv3_deposit"
	TopicProgress = "swordv3_progress"
	TopicNotify   = "swordv3_notify"
)

// Stages of a single deposit attempt.
const (
	StageAssembling     = "Assembling"
	StageDiscovering    = "Discovering"
	StageSubmitting     = "Submitting"
	StageAppendingFiles = "AppendingFiles"
	StagePolling        = "Polling"
	StageDone           = "Done"
	StageAborted        = "Aborted"
	StageFailed         = "Failed"
)

var StageTypes []string = []string{
	StageAssembling,
	StageDiscovering,
	StageSubmitting,
	StageAppendingFiles,
	StagePolling,
	StageDone,
	StageAborted,
	StageFailed,
}
