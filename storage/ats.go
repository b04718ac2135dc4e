package storage

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/tolelom/qorachain/core"
)

type ats struct{ r *Repository }

func (a ats) FromATAddress(address string) (*core.ATData, error) {
	var at core.ATData
	if err := a.r.getJSON(prefixAT+address, &at); err != nil {
		return nil, err
	}
	return &at, nil
}

func (a ats) GetExecutableATs() ([]*core.ATData, error) {
	keys, vals, err := a.r.scan(prefixAT)
	if err != nil {
		return nil, err
	}
	var out []*core.ATData
	for _, k := range keys {
		var at core.ATData
		if err := json.Unmarshal(vals[k], &at); err != nil {
			return nil, core.WrapData("decode "+k, err)
		}
		if !at.IsFinished {
			out = append(out, &at)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreationTimestamp != out[j].CreationTimestamp {
			return out[i].CreationTimestamp < out[j].CreationTimestamp
		}
		return out[i].ATAddress < out[j].ATAddress
	})
	return out, nil
}

func (a ats) Save(at *core.ATData) error {
	return a.r.putJSON(prefixAT+at.ATAddress, at)
}

func (a ats) Delete(address string) error {
	a.r.del(prefixAT + address)
	return nil
}

func (a ats) GetATStateAtHeight(address string, height int) (*core.ATStateData, error) {
	var st core.ATStateData
	if err := a.r.getJSON(atStateKey(address, height), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (a ats) GetATStateBefore(address string, height int) (*core.ATStateData, error) {
	keys, _, err := a.r.scan(prefixATState + address + ":")
	if err != nil {
		return nil, err
	}
	limit := atStateKey(address, height)
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] < limit {
			var st core.ATStateData
			if err := a.r.getJSON(keys[i], &st); err != nil {
				return nil, err
			}
			return &st, nil
		}
	}
	return nil, core.ErrNotFound
}

func (a ats) GetBlockATStates(height int) ([]*core.ATStateData, error) {
	prefix := atHeightKey(height, "")
	keys, _, err := a.r.scan(prefix)
	if err != nil {
		return nil, err
	}
	states := make([]*core.ATStateData, 0, len(keys))
	for _, k := range keys {
		st, err := a.GetATStateAtHeight(strings.TrimPrefix(k, prefix), height)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

func (a ats) SaveATState(st *core.ATStateData) error {
	if err := a.r.putJSON(atStateKey(st.ATAddress, st.Height), st); err != nil {
		return err
	}
	a.r.set(atHeightKey(st.Height, st.ATAddress), nil)
	return nil
}

func (a ats) DeleteATStates(height int) error {
	prefix := atHeightKey(height, "")
	keys, _, err := a.r.scan(prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		a.r.del(atStateKey(strings.TrimPrefix(k, prefix), height))
		a.r.del(k)
	}
	return nil
}
