// SPDX-License-Identifier: MPL-2.0

package serverbase

// Option configures a Base instance.
type Option func(*Base)

// WithTransitionHook registers fn to be called after every state change.
// fn runs synchronously under the transition lock and must not call back
// into the Base.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(b *Base) {
		b.hooks = append(b.hooks, fn)
	}
}
