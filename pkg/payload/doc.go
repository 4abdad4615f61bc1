/*
Package payload defines the Dispatch Engine's PayloadBuilder collaborator:
given a ScheduleRequest and the TaskExecutorRegistration it was assigned to,
produce the opaque ExecutorPayload the Gateway hands to the executor. The
engine treats Build as a pure function; it must not perform I/O.

Default builds an ExecuteStagePayload struct, the payload shape every test
in this module expects. A deployment whose executor protocol
needs a richer wire format (protobuf, JSON envelope, whatever
ExecuteStageRequest maps to on the wire) supplies its own PayloadBuilder.
*/
package payload
