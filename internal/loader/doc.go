/*
Package loader fetches network resources on behalf of the inspector
frontend, streaming body fragments back as they arrive.

A load request becomes a Job: Scheduled, then Fetching once its delay
elapses, Streaming while fragments flow, and finally Completed with one
terminal response. The single retryable failure is resource exhaustion
(file-descriptor pressure): the job reschedules a successor under the
same stream id with exponential backoff (250ms, then ×1.3 per step,
stopping once the prior delay reached 10s). Every other failure, and
success, is terminal.

Fragment delivery is back-pressure aware: the fetcher does not read
more of the body until the current fragment's delivery resumed it.
Fragments that are not valid UTF-8 are base64-encoded and flagged so
the frontend can decode them.
*/
package loader
