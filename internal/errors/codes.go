package errors

// Stable error codes. Codes are matched programmatically by callers and
// show up as metric labels, so they never change once released.
const (
	// Fetch collaborator
	CodeFetchRejected      = "FETCH_REJECTED"
	CodeFetchPanicked      = "FETCH_PANICKED"
	CodeFetchTimeout       = "FETCH_TIMEOUT"
	CodeFetcherNotFound    = "FETCHER_NOT_FOUND"
	CodeCircuitOpen        = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen    = "CIRCUIT_HALF_OPEN"
	CodeBackendQueryFailed = "BACKEND_QUERY_FAILED"

	// Policy table
	CodeUnknownCategory = "UNKNOWN_CATEGORY"
	CodeInvalidPolicy   = "INVALID_POLICY"

	// Prefetch outcomes
	CodeNetworkDegraded  = "NETWORK_DEGRADED"
	CodeNoSuccessorView  = "NO_SUCCESSOR_VIEW"
	CodeAlreadyFetched   = "ALREADY_PREFETCHED"
	CodeAlreadyAvailable = "ALREADY_AVAILABLE"
	CodeQueueFull        = "QUEUE_FULL"

	// Worker pool
	CodePoolShuttingDown = "POOL_SHUTTING_DOWN"
	CodePoolNotRunning   = "POOL_NOT_RUNNING"

	// Input and configuration
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInvalidConfig   = "INVALID_CONFIG"
	CodeNoSubject       = "NO_SUBJECT"
	CodeSessionNotFound = "SESSION_NOT_FOUND"

	CodeWrapped = "WRAP_ERROR"
)
