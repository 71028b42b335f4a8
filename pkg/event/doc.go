/*
Package event implements typed event channels used to wake waiting nodes.

A Channel carries messages of a fixed arity (0 to 4) and payload types. SendEventMessage
invokes every registered listener synchronously, in registration order, on the calling
goroutine. A listener may itself send on the same channel; nested sends run immediately.

Channel0 through Channel4 are typed facades over the same Channel.
*/
package event
