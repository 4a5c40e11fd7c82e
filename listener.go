// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

package radioloc

// EstimateListener receives estimation lifecycle notifications. Both
// hooks are invoked synchronously inside the estimate call, so they must
// not block indefinitely. Errors are never routed through the listener;
// they surface as the estimate call's return value.
type EstimateListener interface {
	EstimateStart()
	EstimateEnd()
}

// EstimateListenerFuncs adapts two plain functions to EstimateListener.
// Either function may be nil.
type EstimateListenerFuncs struct {
	OnStart func()
	OnEnd   func()
}

func (l *EstimateListenerFuncs) EstimateStart() {
	if l.OnStart != nil {
		l.OnStart()
	}
}

func (l *EstimateListenerFuncs) EstimateEnd() {
	if l.OnEnd != nil {
		l.OnEnd()
	}
}
