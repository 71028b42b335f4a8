/*
Package session implements session management and persistence orchestration.

A session is one agent instance whose snapshot lives in a ports.StateStore
between ticks. The Manager serializes access per session ID with reference
counted local locks and, when configured, a ports.DistributedLocker shared by
every replica.
*/
package session
