package calendar

// MonthID converts a Unix timestamp (seconds, UTC) to the calendar month
// identifier year*100 + month, e.g. 2026-02-14 -> 202602.
//
// The conversion uses the civil-from-days algorithm over the proleptic
// Gregorian calendar, so leap years follow the full rule: divisible by 4,
// except centuries, except multiples of 400. The function is pure and
// defined for all non-negative timestamps.
func MonthID(timestamp int64) uint32 {
	year, month, _ := civilFromUnix(timestamp)
	return uint32(year)*100 + uint32(month)
}

// civilFromUnix maps a non-negative Unix timestamp to (year, month, day).
func civilFromUnix(timestamp int64) (int64, int64, int64) {
	days := timestamp / 86400
	return civilFromDays(days)
}

// civilFromDays converts a count of days since 1970-01-01 into a proleptic
// Gregorian civil date. Days are grouped into 400-year eras of exactly
// 146097 days each; the era offset 719468 shifts the epoch to 0000-03-01 so
// leap days land at the end of the internal year.
func civilFromDays(days int64) (int64, int64, int64) {
	z := days + 719468
	era := z / 146097
	doe := z - era*146097                                      // [0, 146096]
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365     // [0, 399]
	y := yoe + era*400                                         // year relative to March
	doy := doe - (365*yoe + yoe/4 - yoe/100)                   // [0, 365]
	mp := (5*doy + 2) / 153                                    // [0, 11], March = 0
	day := doy - (153*mp+2)/5 + 1                              // [1, 31]
	month := mp + 3
	if mp >= 10 {
		month = mp - 9
	}
	if month <= 2 {
		y++
	}
	return y, month, day
}
