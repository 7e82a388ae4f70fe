// Package models defines the core domain models for tabsync.
//
// # Models
//
//   - Group: a set of members who split expenses together
//   - Event: the group's current shared outing, holding its expenses
//   - Expense: one fronted cost with a payer and a debtor contribution
//   - Contribution: tagged variant, single debtor or even split
//   - User: registered account with a payment handle for settlement links
//   - Settlement: audit record of a confirmed peer-to-peer payment
//
// Members are identified by username strings, unique per group.
//
// # Design Principles
//
//  1. **One debtor model at the edges**: both the single-debtor and the
//     legacy even-split shape are carried by Contribution and resolved
//     into flat (payer, debtor, amount) triples exactly once, in the
//     calculator; consumers never branch on the variant.
//  2. **Derived state is never persisted**: balance summaries live in
//     the calculator package and are recomputed from the expense list.
//  3. **Avoid circular references**: relationships use ID strings, not
//     pointers.
//  4. **Money is decimal**: amounts are decimal.Decimal end to end;
//     floats never touch currency.
package models
