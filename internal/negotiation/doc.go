// Package negotiation holds the pure rules of an AI proxy negotiation:
// reading offers out of free-form replies, keeping each side inside its
// secret bound, deciding when a deal closes, building prompts and
// summarising a finished negotiation.  Nothing here performs I/O.
package negotiation
