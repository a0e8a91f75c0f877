package domain

import "errors"

var (
	ErrPeerNotFound   = errors.New("peer not found")
	ErrRoomNotFound   = errors.New("room not found")
	ErrFrameEvicted   = errors.New("frame evicted before dispatch")
	ErrPipelineClosed = errors.New("pipeline closed")
)
