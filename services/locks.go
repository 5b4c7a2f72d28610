// services/locks.go - Per-room serialization
package services

import "sync"

// roomLocks hands out one mutex per room id so every read-modify-write on
// a room's state runs serialized within this process. Entries are dropped
// when their room is deleted.
var roomLocks = struct {
	sync.Mutex
	m map[uint]*sync.Mutex
}{m: make(map[uint]*sync.Mutex)}

func lockRoom(roomID uint) *sync.Mutex {
	roomLocks.Lock()
	mu, ok := roomLocks.m[roomID]
	if !ok {
		mu = &sync.Mutex{}
		roomLocks.m[roomID] = mu
	}
	roomLocks.Unlock()

	mu.Lock()
	return mu
}

func forgetRoomLock(roomID uint) {
	roomLocks.Lock()
	delete(roomLocks.m, roomID)
	roomLocks.Unlock()
}
