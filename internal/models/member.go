package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role within the clan. Executive roles sit on the council and are targeted
// by executive-scoped contributions.
type Role string

const (
	RoleMember         Role = "MEMBER"
	RoleChairperson    Role = "CHAIRPERSON"
	RoleDepChairperson Role = "DEP_CHAIRPERSON"
	RoleSecretary      Role = "SECRETARY"
	RoleDepSecretary   Role = "DEP_SECRETARY"
	RoleTreasurer      Role = "TREASURER"
	RoleHeadOfCouncil  Role = "HEAD_OF_COUNCIL"
)

// ExecutiveRoles are the council positions targeted by executive-scoped
// contribution types.
var ExecutiveRoles = []Role{
	RoleChairperson,
	RoleDepChairperson,
	RoleSecretary,
	RoleDepSecretary,
	RoleTreasurer,
	RoleHeadOfCouncil,
}

func (r Role) CanApprovePayments() bool {
	return r == RoleTreasurer || r == RoleChairperson
}

// Classification of a member within their family. Children and grandchildren
// are dependents and are never billed.
type Classification string

const (
	ClassRelative    Classification = "RELATIVE"
	ClassChild       Classification = "CHILD"
	ClassGrandchild  Classification = "GRANDCHILD"
	ClassParent      Classification = "PARENT"
	ClassGrandparent Classification = "GRANDPARENT"
	ClassOther       Classification = "OTHER"
)

func (c Classification) Dependent() bool {
	return c == ClassChild || c == ClassGrandchild
}

// Member is a clan member account. This core only reads members; account
// registration and approval live elsewhere.
type Member struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName       string             `bson:"fullname" json:"fullname"`
	Email          string             `bson:"email" json:"email"`
	Phone          string             `bson:"phone" json:"phone"`
	HPassword      string             `bson:"password" json:"-"`
	FamilyID       primitive.ObjectID `bson:"family_id,omitempty" json:"family_id,omitempty"`
	Role           Role               `bson:"role" json:"role"`
	Classification Classification     `bson:"classification" json:"classification"`
	IsActive       bool               `bson:"is_active" json:"is_active"`
	IsApproved     bool               `bson:"is_approved" json:"is_approved"`
	IsFamilyLeader bool               `bson:"is_family_leader" json:"is_family_leader"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Family groups members under a leader.
type Family struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	LeaderID  primitive.ObjectID `bson:"leader_id,omitempty" json:"leader_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
