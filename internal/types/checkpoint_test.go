package types

import "testing"

func TestCheckpointRoundTrip(t *testing.T) {
	pair := Checkpoint{Height: 831_000}
	key, err := pair.SerialiseKey()
	if err != nil {
		t.Fatal(err)
	}
	if string(key) != CheckpointKey {
		t.Errorf("key = %q, want %q", key, CheckpointKey)
	}
	data, err := pair.SerialiseData()
	if err != nil {
		t.Fatal(err)
	}

	restored := PairFactoryCheckpoint().(*Checkpoint)
	if err = restored.DeSerialiseKey(key); err != nil {
		t.Fatal(err)
	}
	if err = restored.DeSerialiseData(data); err != nil {
		t.Fatal(err)
	}
	if restored.Height != 831_000 {
		t.Errorf("height = %d, want 831000", restored.Height)
	}
}

func TestCheckpointRejectsForeignKey(t *testing.T) {
	var pair Checkpoint
	if err := pair.DeSerialiseKey([]byte("831000")); err == nil {
		t.Error("foreign key accepted")
	}
}
