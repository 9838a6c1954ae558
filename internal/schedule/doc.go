// Package schedule holds the recurrence model for tasks and the two pure
// decisions derived from it: when the next reminder may fire, and whether a
// progress mark is allowed right now.
//
// Everything in this package is a pure function of its inputs. Time zone
// handling is a fixed configured hour offset per schedule, not a located
// time.Location: the user tells us how far their wall clock sits from the
// reference frame and we shift instants by that amount.
package schedule
