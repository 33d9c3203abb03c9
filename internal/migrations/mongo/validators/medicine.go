package validators

import "go.mongodb.org/mongo-driver/bson"

var MedicineValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "category", "quantity", "price"},
		"properties": bson.M{
			"_id":          bson.M{"bsonType": "string"},
			"name":         bson.M{"bsonType": "string", "minLength": 1, "maxLength": 100},
			"generic_name": bson.M{"bsonType": "string"},
			"category":     bson.M{"bsonType": "string"},
			"description":  bson.M{"bsonType": "string"},
			"symptoms":     bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
			"quantity":     bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"price":        bson.M{"bsonType": []string{"double", "int", "long", "decimal"}, "minimum": 0},
		},
	},
}

// PatientValidator only pins the lookup key; the history lists are owned by
// the medicines service.
var PatientValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"email"},
		"properties": bson.M{
			"_id":                 bson.M{"bsonType": "string"},
			"email":               bson.M{"bsonType": "string"},
			"medications":         bson.M{"bsonType": "array"},
			"purchased_medicines": bson.M{"bsonType": "array"},
			"medicine_inquiries":  bson.M{"bsonType": "array"},
		},
	},
}
