// Package progress batches task record updates so rapid tool output does
// not turn into a disk write per line. Each running task owns one Writer;
// patches accumulate in memory and flush at most once per interval, except
// terminal patches which always write through.
package progress
