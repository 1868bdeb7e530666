/*
Package protocol defines the bridge's wire types.

Inbound: frontend requests as {"id": int?, "method": string, "params":
array?} JSON objects, parsed into Message values. Outbound: client
function calls by name with up to three JSON-serializable arguments.
The bridge treats protocol payloads themselves as opaque; only the
envelope is interpreted here.
*/
package protocol
