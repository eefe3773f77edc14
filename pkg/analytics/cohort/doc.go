// Package cohort computes retention cohorts over the event source.
//
// Users are bucketed into cohorts by the timestamp of their
// cohort-defining event, truncated to the period type (day, Sunday
// week, or calendar month). For each cohort and period the analyzer
// counts members who produced the retention event within
// [cohortDate+period, cohortDate+period+1); empty cohorts retain at 0
// for every period.
package cohort
